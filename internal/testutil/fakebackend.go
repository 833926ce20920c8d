package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Credentials accepted by FakeBackend.
const (
	FakeUsername  = "rita"
	FakePassword  = "s3cret"
	FakeCSRFToken = "csrf-test-token"
)

// RecordedRequest is one request seen by FakeBackend.
type RecordedRequest struct {
	Method      string
	Path        string
	Query       string
	CSRFHeader  string
	RequestID   string
	Auth        string
	ContentType string
}

// ChatCall is what FakeBackend received on the chat endpoint.
type ChatCall struct {
	Message   string
	SearchWeb bool
	Files     map[string]string // name -> content
	CSRFField string
}

type fakeScrape struct {
	id        int
	url       string
	fields    string
	model     string
	calls     int
	createdAt string
}

type fakeVideo struct {
	id    int
	url   string
	calls int
}

// FakeBackend is an in-memory imitation of the Rita web backend, served
// with gin. Unsafe requests need the CSRF token; API routes need a session
// and redirect to the login page without one.
type FakeBackend struct {
	mu       sync.Mutex
	sessions map[string]bool
	requests []RecordedRequest
	chats    []ChatCall
	scrapes  map[int]*fakeScrape
	videos   map[int]*fakeVideo
	nextID   int

	// ChatReply is returned by the chat endpoint. Empty echoes the message.
	ChatReply string

	// ScrapeSteps is the status sequence every scrape walks through, one
	// per status query; the last one repeats.
	ScrapeSteps []string

	// ScrapeError is the error_message of a FAILED scrape.
	ScrapeError string

	// ResultJSON is served as every scrape's json_url document.
	ResultJSON string

	// VideoSteps is the status sequence of every video analysis.
	VideoSteps []string

	// AnalysisJSON is the analysis object of a COMPLETE video.
	AnalysisJSON string

	// JSONLogin makes the login form answer with JSON like the AJAX form.
	JSONLogin bool
}

// NewFakeBackend creates a backend where tasks complete on the second poll.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		sessions:     make(map[string]bool),
		scrapes:      make(map[int]*fakeScrape),
		videos:       make(map[int]*fakeVideo),
		nextID:       1,
		ScrapeSteps:  []string{"PENDING", "COMPLETE"},
		VideoSteps:   []string{"PROCESSING", "COMPLETE"},
		ResultJSON:   `{"products":[{"product_name":"Lamp","price":12.5},{"product_name":"Desk","price":80}]}`,
		AnalysisJSON: `{"summary":"A quick pasta recipe.","main_topics":["cooking","pasta"]}`,
		JSONLogin:    true,
	}
}

// Start serves the backend on a test server closed at the end of the test.
func (f *FakeBackend) Start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f.Handler())
	t.Cleanup(srv.Close)
	return srv
}

// Handler returns the gin engine.
func (f *FakeBackend) Handler() http.Handler {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(f.record)

	r.GET("/login/", f.loginPage)
	r.POST("/login/", f.csrf, f.login)
	r.GET("/logout/", f.logout)
	r.POST("/register/", f.csrf, f.register)

	authed := r.Group("/", f.requireLogin)
	authed.GET("/web-scraper/", f.loginPage)
	authed.POST("/api/chat/", f.csrf, f.chat)
	authed.POST("/api/chat/refresh/", f.csrf, f.resetChat)
	authed.POST("/api/chat/delete/", f.csrf, f.resetChat)
	authed.POST("/api/web-scraper/start/", f.csrf, f.startScrape)
	authed.GET("/api/web-scraper/status/:id/", f.scrapeStatus)
	authed.GET("/api/web-scraper/history/", f.scrapeHistory)
	authed.POST("/api/web-scraper/history/delete/", f.csrf, f.deleteScrapeHistory)
	authed.GET("/download/scrape/:id/:type/", f.download)
	authed.POST("/api/tiktok-analyzer/submit/", f.csrf, f.submitVideo)
	authed.GET("/api/tiktok-analyzer/status/", f.videoStatus)
	authed.POST("/api/tiktok-history/delete/", f.csrf, f.deleteVideos)
	r.GET("/media/:name", f.media)
	return r
}

// Requests returns every request seen so far.
func (f *FakeBackend) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// CountRequests counts requests to paths starting with prefix.
func (f *FakeBackend) CountRequests(method, prefix string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}
	return n
}

// Chats returns the chat calls received.
func (f *FakeBackend) Chats() []ChatCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ChatCall, len(f.chats))
	copy(out, f.chats)
	return out
}

// Login creates a session and returns its cookie value.
func (f *FakeBackend) Login() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	sid := uuid.NewString()
	f.sessions[sid] = true
	return sid
}

// AddVideo registers a video as already submitted and returns its id.
func (f *FakeBackend) AddVideo(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.videos[id] = &fakeVideo{id: id, url: url}
	return id
}

// VideoIDs returns the ids of the stored videos.
func (f *FakeBackend) VideoIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(f.videos))
	for id := range f.videos {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (f *FakeBackend) record(c *gin.Context) {
	f.mu.Lock()
	f.requests = append(f.requests, RecordedRequest{
		Method:      c.Request.Method,
		Path:        c.Request.URL.Path,
		Query:       c.Request.URL.RawQuery,
		CSRFHeader:  c.GetHeader("X-CSRFToken"),
		RequestID:   c.GetHeader("X-Request-ID"),
		Auth:        c.GetHeader("Authorization"),
		ContentType: c.ContentType(),
	})
	f.mu.Unlock()
	c.Next()
}

func (f *FakeBackend) csrf(c *gin.Context) {
	cookie, _ := c.Cookie("csrftoken")
	token := c.GetHeader("X-CSRFToken")
	if token == "" {
		token = c.PostForm("csrfmiddlewaretoken")
	}
	if cookie == "" || token != cookie {
		c.Data(http.StatusForbidden, "text/html", []byte("<h1>Forbidden (403)</h1><p>CSRF verification failed.</p>"))
		c.Abort()
		return
	}
	c.Next()
}

func (f *FakeBackend) requireLogin(c *gin.Context) {
	sid, _ := c.Cookie("sessionid")
	f.mu.Lock()
	ok := f.sessions[sid]
	f.mu.Unlock()
	if !ok {
		c.Redirect(http.StatusFound, "/login/?next="+c.Request.URL.Path)
		c.Abort()
		return
	}
	c.Next()
}

func (f *FakeBackend) loginPage(c *gin.Context) {
	c.SetCookie("csrftoken", FakeCSRFToken, 3600, "/", "", false, false)
	c.Data(http.StatusOK, "text/html", []byte("<form method=post></form>"))
}

func (f *FakeBackend) login(c *gin.Context) {
	ok := c.PostForm("username") == FakeUsername && c.PostForm("password") == FakePassword
	if ok {
		c.SetCookie("sessionid", f.Login(), 3600, "/", "", false, true)
	}

	switch {
	case f.JSONLogin && ok:
		c.JSON(http.StatusOK, gin.H{"status": "success", "redirect_url": "/chat/"})
	case f.JSONLogin:
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid username or password."})
	case ok:
		c.Redirect(http.StatusFound, "/chat/")
	default:
		c.Data(http.StatusOK, "text/html", []byte("<form method=post>invalid</form>"))
	}
}

// register accepts any new username except FakeUsername, which is taken.
// Errors follow Django's form.errors.as_json(), sent as a string.
func (f *FakeBackend) register(c *gin.Context) {
	errs := gin.H{}
	switch username := c.PostForm("username"); {
	case username == "":
		errs["username"] = []gin.H{{"message": "This field is required.", "code": "required"}}
	case username == FakeUsername:
		errs["username"] = []gin.H{{"message": "A user with that username already exists.", "code": "unique"}}
	}
	if c.PostForm("password1") != c.PostForm("password2") {
		errs["password2"] = []gin.H{{"message": "The two password fields didn't match.", "code": "password_mismatch"}}
	}

	if len(errs) > 0 {
		if !f.JSONLogin {
			c.Data(http.StatusOK, "text/html", []byte("<form method=post>invalid</form>"))
			return
		}
		encoded, _ := json.Marshal(errs)
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "errors": string(encoded)})
		return
	}

	c.SetCookie("sessionid", f.Login(), 3600, "/", "", false, true)
	if !f.JSONLogin {
		c.Redirect(http.StatusFound, "/chat/")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "redirect_url": "/chat/"})
}

func (f *FakeBackend) logout(c *gin.Context) {
	sid, _ := c.Cookie("sessionid")
	f.mu.Lock()
	delete(f.sessions, sid)
	f.mu.Unlock()
	c.SetCookie("sessionid", "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}

func (f *FakeBackend) chat(c *gin.Context) {
	call := ChatCall{
		Message:   c.PostForm("message"),
		SearchWeb: c.PostForm("search_web") == "true",
		Files:     map[string]string{},
		CSRFField: c.PostForm("csrfmiddlewaretoken"),
	}
	if form, err := c.MultipartForm(); err == nil {
		for _, fh := range form.File["files"] {
			src, err := fh.Open()
			if err != nil {
				continue
			}
			data, _ := io.ReadAll(src)
			src.Close()
			call.Files[fh.Filename] = string(data)
		}
	}
	if call.Message == "" && len(call.Files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message or file is required"})
		return
	}

	f.mu.Lock()
	f.chats = append(f.chats, call)
	n := len(f.chats)
	f.mu.Unlock()

	reply := f.ChatReply
	if reply == "" {
		reply = "echo: " + call.Message
	}
	c.JSON(http.StatusOK, gin.H{"response": reply, "model_message_id": n})
}

func (f *FakeBackend) resetChat(c *gin.Context) {
	f.mu.Lock()
	f.chats = nil
	f.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Chat history refreshed."})
}

func (f *FakeBackend) startScrape(c *gin.Context) {
	var in struct {
		URL    string `json:"url"`
		Fields string `json:"fields"`
		Model  string `json:"model"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.URL == "" || in.Fields == "" || in.Model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required data."})
		return
	}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.scrapes[id] = &fakeScrape{id: id, url: in.URL, fields: in.Fields, model: in.Model,
		createdAt: fmt.Sprintf("10:%02d:00, 01/03/2026", id%60)}
	f.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"status": "ok", "task_id": id})
}

func (f *FakeBackend) scrapeStatus(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))

	f.mu.Lock()
	s, ok := f.scrapes[id]
	var status string
	if ok {
		status = backendStep(f.ScrapeSteps, s.calls)
		s.calls++
	}
	f.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found."})
		return
	}

	resp := gin.H{
		"id": s.id, "status": status, "url": s.url, "created_at": s.createdAt,
		"json_url": nil, "csv_url": nil, "cost": "N/A",
		"input_tokens": nil, "output_tokens": nil, "error_message": nil,
	}
	switch status {
	case "COMPLETE":
		resp["json_url"] = fmt.Sprintf("/media/scrape_result_%d.json", id)
		resp["csv_url"] = fmt.Sprintf("/media/scrape_result_%d.csv", id)
		resp["cost"] = "0.001234"
		resp["input_tokens"] = 1200
		resp["output_tokens"] = 300
	case "FAILED":
		resp["error_message"] = f.ScrapeError
	}
	c.JSON(http.StatusOK, resp)
}

func (f *FakeBackend) scrapeHistory(c *gin.Context) {
	f.mu.Lock()
	ids := make([]int, 0, len(f.scrapes))
	for id := range f.scrapes {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))
	history := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		s := f.scrapes[id]
		history = append(history, gin.H{
			"id": s.id, "created_at": s.createdAt, "url": s.url,
			"status": backendStep(f.ScrapeSteps, s.calls-1),
		})
	}
	f.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (f *FakeBackend) deleteScrapeHistory(c *gin.Context) {
	f.mu.Lock()
	f.scrapes = make(map[int]*fakeScrape)
	f.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "History deleted successfully."})
}

func (f *FakeBackend) download(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))
	f.mu.Lock()
	s, ok := f.scrapes[id]
	done := ok && backendStep(f.ScrapeSteps, s.calls-1) == "COMPLETE"
	f.mu.Unlock()
	if !done {
		c.Data(http.StatusNotFound, "text/html", []byte("Result not ready or task failed."))
		return
	}
	switch c.Param("type") {
	case "json":
		c.Data(http.StatusOK, "application/json", []byte(f.ResultJSON))
	case "csv":
		c.Data(http.StatusOK, "text/csv", []byte("product_name,price\nLamp,12.5\nDesk,80\n"))
	default:
		c.Data(http.StatusNotFound, "text/html", []byte("Invalid file type."))
	}
}

func (f *FakeBackend) media(c *gin.Context) {
	if strings.HasSuffix(c.Param("name"), ".json") {
		c.Data(http.StatusOK, "application/json", []byte(f.ResultJSON))
		return
	}
	c.Status(http.StatusNotFound)
}

func (f *FakeBackend) submitVideo(c *gin.Context) {
	var in struct {
		VideoURL string `json:"video_url"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.VideoURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Video URL is required"})
		return
	}
	id := f.AddVideo(in.VideoURL)
	c.JSON(http.StatusOK, gin.H{
		"status": "processing",
		"video": gin.H{
			"id": id, "author": "chef", "description": "Pasta in 5 minutes",
			"cover_url": "https://cdn.example/cover.jpg", "download_url": "https://cdn.example/v.mp4",
			"plays": 1500000, "likes": 12345, "comments": 999, "shares": 1000,
			"transcript": "Boil water. Add pasta.",
		},
	})
}

func (f *FakeBackend) videoStatus(c *gin.Context) {
	raw := c.Query("id")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing video ID."})
		return
	}
	id, _ := strconv.Atoi(raw)

	f.mu.Lock()
	v, ok := f.videos[id]
	var status string
	if ok {
		status = backendStep(f.VideoSteps, v.calls)
		v.calls++
	}
	f.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not found."})
		return
	}
	if status == "COMPLETE" {
		c.Data(http.StatusOK, "application/json",
			[]byte(fmt.Sprintf(`{"status":"COMPLETE","analysis":%s}`, f.AnalysisJSON)))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "analysis": nil})
}

func (f *FakeBackend) deleteVideos(c *gin.Context) {
	var in struct {
		IDs []int `json:"ids"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || len(in.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data."})
		return
	}

	f.mu.Lock()
	deleted := 0
	for _, id := range in.IDs {
		if _, ok := f.videos[id]; ok {
			delete(f.videos, id)
			deleted++
		}
	}
	f.mu.Unlock()

	if deleted == 0 {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Nothing to delete."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": fmt.Sprintf("Deleted %d items.", deleted)})
}

func backendStep(steps []string, i int) string {
	if len(steps) == 0 {
		return "COMPLETE"
	}
	if i < 0 {
		i = 0
	}
	if i >= len(steps) {
		i = len(steps) - 1
	}
	return steps[i]
}
