package webapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"rita/internal/backend/webapi"
	"rita/internal/config"
	apperrors "rita/internal/errors"
	"rita/internal/service"
	"rita/internal/testutil"
)

func newClient(t *testing.T, fb *testutil.FakeBackend) *webapi.Client {
	t.Helper()
	srv := fb.Start(t)
	c, err := webapi.NewWithHTTPClient(srv.URL, nil, nil)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	return c
}

func loggedIn(t *testing.T, fb *testutil.FakeBackend) *webapi.Client {
	t.Helper()
	c := newClient(t, fb)
	if err := c.Login(context.Background(), testutil.FakeUsername, testutil.FakePassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
	return c
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name      string
		jsonLogin bool
		password  string
		wantErr   bool
	}{
		{"json success", true, testutil.FakePassword, false},
		{"json failure", true, "wrong", true},
		{"redirect success", false, testutil.FakePassword, false},
		{"form failure", false, "wrong", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := testutil.NewFakeBackend()
			fb.JSONLogin = tt.jsonLogin
			c := newClient(t, fb)

			err := c.Login(context.Background(), testutil.FakeUsername, tt.password)
			if tt.wantErr {
				if !apperrors.HasCode(err, apperrors.ErrCodeUnauthorized) {
					t.Errorf("expected unauthorized, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login: %v", err)
			}
			if _, err := c.ScrapeHistory(context.Background()); err != nil {
				t.Errorf("session not usable after login: %v", err)
			}
		})
	}
}

func TestNotLoggedIn(t *testing.T) {
	fb := testutil.NewFakeBackend()
	c := newClient(t, fb)

	_, err := c.ScrapeHistory(context.Background())
	if !apperrors.HasCode(err, apperrors.ErrCodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if !strings.Contains(err.Error(), "rita login") {
		t.Errorf("message should point at login: %q", err.Error())
	}
}

func TestChat_TextOnly(t *testing.T) {
	fb := testutil.NewFakeBackend()
	fb.ChatReply = "hi"
	c := loggedIn(t, fb)

	reply, err := c.Chat(context.Background(), service.ChatRequest{Message: "hello", SearchWeb: true})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.Response != "hi" || reply.MessageID != 1 {
		t.Errorf("reply = %+v", reply)
	}

	calls := fb.Chats()
	if len(calls) != 1 || calls[0].Message != "hello" || !calls[0].SearchWeb {
		t.Errorf("backend got %+v", calls)
	}

	var chatReq testutil.RecordedRequest
	for _, r := range fb.Requests() {
		if r.Path == "/api/chat/" {
			chatReq = r
		}
	}
	if chatReq.CSRFHeader != testutil.FakeCSRFToken {
		t.Errorf("CSRF header = %q", chatReq.CSRFHeader)
	}
	if chatReq.RequestID == "" {
		t.Error("missing X-Request-ID")
	}
	if chatReq.ContentType != "application/x-www-form-urlencoded" {
		t.Errorf("content type = %q", chatReq.ContentType)
	}
}

func TestChat_Multipart(t *testing.T) {
	fb := testutil.NewFakeBackend()
	c := loggedIn(t, fb)

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("remember the milk"), 0600); err != nil {
		t.Fatal(err)
	}

	reply, err := c.Chat(context.Background(), service.ChatRequest{
		Files: []service.Attachment{{Name: "notes.txt", Path: path, Size: 17}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.Response != "echo: " {
		t.Errorf("reply = %q", reply.Response)
	}

	calls := fb.Chats()
	if len(calls) != 1 {
		t.Fatalf("expected one chat call, got %d", len(calls))
	}
	if calls[0].Files["notes.txt"] != "remember the milk" {
		t.Errorf("files = %v", calls[0].Files)
	}
	if calls[0].CSRFField != testutil.FakeCSRFToken {
		t.Errorf("csrf form field = %q", calls[0].CSRFField)
	}
}

func TestChat_MissingFile(t *testing.T) {
	fb := testutil.NewFakeBackend()
	c := loggedIn(t, fb)

	_, err := c.Chat(context.Background(), service.ChatRequest{
		Files: []service.Attachment{{Name: "gone.txt", Path: filepath.Join(t.TempDir(), "gone.txt")}},
	})
	if !apperrors.HasCode(err, apperrors.ErrCodeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if len(fb.Chats()) != 0 {
		t.Error("no chat request should reach the backend")
	}
}

func TestResetChat(t *testing.T) {
	fb := testutil.NewFakeBackend()
	c := loggedIn(t, fb)
	ctx := context.Background()

	for _, hard := range []bool{false, true} {
		ack, err := c.ResetChat(ctx, hard)
		if err != nil {
			t.Fatalf("ResetChat(%v): %v", hard, err)
		}
		if !ack.OK() {
			t.Errorf("ack = %+v", ack)
		}
	}
	if fb.CountRequests("POST", "/api/chat/refresh/") != 1 || fb.CountRequests("POST", "/api/chat/delete/") != 1 {
		t.Errorf("unexpected requests %+v", fb.Requests())
	}
}

func TestScrapeLifecycle(t *testing.T) {
	fb := testutil.NewFakeBackend()
	c := loggedIn(t, fb)
	ctx := context.Background()

	id, err := c.StartScrape(ctx, service.ScrapeRequest{
		URL: "https://shop.example/list", Fields: []string{"product_name", "price"}, Model: "gemini-1.5-flash",
	})
	if err != nil {
		t.Fatalf("StartScrape: %v", err)
	}
	if id != "1" {
		t.Errorf("id = %q", id)
	}

	if _, err := c.Download(ctx, id, "json"); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("download before completion: expected not found, got %v", err)
	}

	st, err := c.ScrapeStatus(ctx, id)
	if err != nil {
		t.Fatalf("ScrapeStatus: %v", err)
	}
	if st.Status != service.StatusPending || st.Cost != "N/A" {
		t.Errorf("first status = %+v", st)
	}

	st, err = c.ScrapeStatus(ctx, id)
	if err != nil {
		t.Fatalf("ScrapeStatus: %v", err)
	}
	if st.Status != service.StatusComplete || st.InputTokens != 1200 || st.Cost != "0.001234" {
		t.Errorf("final status = %+v", st)
	}

	doc, err := c.FetchResult(ctx, st.JSONURL)
	if err != nil {
		t.Fatalf("FetchResult: %v", err)
	}
	if string(doc) != fb.ResultJSON {
		t.Errorf("result = %s", doc)
	}

	csv, err := c.Download(ctx, id, "CSV")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !strings.HasPrefix(string(csv), "product_name,price") {
		t.Errorf("csv = %q", csv)
	}

	if _, err := c.Download(ctx, id, "xml"); !apperrors.HasCode(err, apperrors.ErrCodeValidation) {
		t.Errorf("expected validation error for xml, got %v", err)
	}
}

func TestStartScrape_MissingData(t *testing.T) {
	fb := testutil.NewFakeBackend()
	c := loggedIn(t, fb)

	_, err := c.StartScrape(context.Background(), service.ScrapeRequest{URL: "https://x.example", Model: "m"})
	if !apperrors.HasCode(err, apperrors.ErrCodeApplication) {
		t.Fatalf("expected application error, got %v", err)
	}
	if err.Error() != "Missing required data." {
		t.Errorf("message = %q", err.Error())
	}
}

func TestScrapeStatus_NotFound(t *testing.T) {
	fb := testutil.NewFakeBackend()
	c := loggedIn(t, fb)

	_, err := c.ScrapeStatus(context.Background(), "42")
	if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err.Error() != "Task not found." {
		t.Errorf("message = %q", err.Error())
	}
}

func TestScrapeHistory(t *testing.T) {
	fb := testutil.NewFakeBackend()
	c := loggedIn(t, fb)
	ctx := context.Background()

	for _, u := range []string{"https://a.example", "https://b.example"} {
		if _, err := c.StartScrape(ctx, service.ScrapeRequest{URL: u, Fields: []string{"title"}, Model: "m"}); err != nil {
			t.Fatal(err)
		}
	}

	items, err := c.ScrapeHistory(ctx)
	if err != nil {
		t.Fatalf("ScrapeHistory: %v", err)
	}
	if len(items) != 2 || items[0].ID != "2" || items[0].URL != "https://b.example" {
		t.Errorf("items = %+v", items)
	}

	ack, err := c.DeleteScrapeHistory(ctx)
	if err != nil || !ack.OK() {
		t.Fatalf("DeleteScrapeHistory: %+v, %v", ack, err)
	}
	items, err = c.ScrapeHistory(ctx)
	if err != nil || len(items) != 0 {
		t.Errorf("history after delete = %+v, %v", items, err)
	}
}

func TestVideoLifecycle(t *testing.T) {
	fb := testutil.NewFakeBackend()
	c := loggedIn(t, fb)
	ctx := context.Background()

	v, err := c.SubmitVideo(ctx, "https://www.tiktok.com/@chef/video/1")
	if err != nil {
		t.Fatalf("SubmitVideo: %v", err)
	}
	if v.ID != "1" || v.Author != "chef" || v.Plays != 1500000 {
		t.Errorf("video = %+v", v)
	}

	st, err := c.VideoStatus(ctx, v.ID)
	if err != nil {
		t.Fatalf("VideoStatus: %v", err)
	}
	if st.Status != service.StatusProcessing || st.Analysis != nil {
		t.Errorf("first status = %+v", st)
	}

	st, err = c.VideoStatus(ctx, v.ID)
	if err != nil {
		t.Fatalf("VideoStatus: %v", err)
	}
	if st.Status != service.StatusComplete || st.Analysis == nil || st.Analysis.Summary != "A quick pasta recipe." {
		t.Errorf("final status = %+v", st)
	}

	reqs := fb.Requests()
	if last := reqs[len(reqs)-1]; last.Query != "id=1" {
		t.Errorf("status query = %q", last.Query)
	}

	ack, err := c.DeleteVideos(ctx, []service.TaskID{v.ID})
	if err != nil || !ack.OK() {
		t.Fatalf("DeleteVideos: %+v, %v", ack, err)
	}
	if len(fb.VideoIDs()) != 0 {
		t.Error("video not deleted")
	}

	_, err = c.DeleteVideos(ctx, []service.TaskID{"99"})
	if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestVideoStatus_UnknownID(t *testing.T) {
	fb := testutil.NewFakeBackend()
	c := loggedIn(t, fb)

	_, err := c.VideoStatus(context.Background(), "7")
	if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestVideoStatus_NonObjectAnalysis(t *testing.T) {
	fb := testutil.NewFakeBackend()
	fb.VideoSteps = []string{"COMPLETE"}
	fb.AnalysisJSON = `"plain text"`
	c := loggedIn(t, fb)
	id := fb.AddVideo("https://v.example/1")

	st, err := c.VideoStatus(context.Background(), service.TaskID(strconv.Itoa(id)))
	if err != nil {
		t.Fatalf("VideoStatus: %v", err)
	}
	if st.Status != service.StatusComplete || st.Analysis != nil {
		t.Errorf("status = %+v", st)
	}
}

func TestTransportError(t *testing.T) {
	fb := testutil.NewFakeBackend()
	srv := fb.Start(t)
	c, err := webapi.NewWithHTTPClient(srv.URL, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	srv.Close()

	_, err = c.ScrapeHistory(context.Background())
	if !apperrors.HasCode(err, apperrors.ErrCodeTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if err.Error() != "cannot reach server" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestCancelledContext(t *testing.T) {
	fb := testutil.NewFakeBackend()
	c := loggedIn(t, fb)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.ScrapeHistory(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNew_PersistsSession(t *testing.T) {
	fb := testutil.NewFakeBackend()
	srv := fb.Start(t)

	cfg, err := config.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg.BaseURL = srv.URL
	if err := cfg.EnsureDir(); err != nil {
		t.Fatal(err)
	}

	c, err := webapi.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Login(context.Background(), testutil.FakeUsername, testutil.FakePassword); err != nil {
		t.Fatalf("Login: %v", err)
	}

	info, err := os.Stat(cfg.SessionPath())
	if err != nil {
		t.Fatalf("session file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("session file mode = %o, want 600", perm)
	}

	// A fresh client picks the session up from disk.
	again, err := webapi.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := again.ScrapeHistory(context.Background()); err != nil {
		t.Errorf("restored session rejected: %v", err)
	}

	// Sessions saved for another server are ignored.
	cfg.BaseURL = "http://other.invalid"
	if _, err := webapi.New(context.Background(), cfg); err != nil {
		t.Fatalf("New: %v", err)
	}
}

func TestNew_BearerToken(t *testing.T) {
	fb := testutil.NewFakeBackend()
	srv := fb.Start(t)

	cfg, err := config.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg.BaseURL = srv.URL
	cfg.APIToken = "tok-123"

	c, err := webapi.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, _ = c.ScrapeHistory(context.Background())

	reqs := fb.Requests()
	if len(reqs) == 0 || reqs[0].Auth != "Bearer tok-123" {
		t.Errorf("Authorization header = %+v", reqs)
	}
}

func TestNew_BearerTokenStaysOnBackendHost(t *testing.T) {
	fb := testutil.NewFakeBackend()
	srv := fb.Start(t)

	var foreignAuth string
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[]}`))
	}))
	t.Cleanup(foreign.Close)

	cfg, err := config.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg.BaseURL = srv.URL
	cfg.APIToken = "secret-token"

	c, err := webapi.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := c.FetchResult(context.Background(), foreign.URL+"/results/1.json")
	if err != nil {
		t.Fatalf("FetchResult: %v", err)
	}
	if string(data) != `{"items":[]}` {
		t.Errorf("body = %q", data)
	}
	if foreignAuth != "" {
		t.Errorf("foreign host received Authorization %q", foreignAuth)
	}

	_, _ = c.ScrapeHistory(context.Background())
	reqs := fb.Requests()
	if len(reqs) == 0 || reqs[len(reqs)-1].Auth != "Bearer secret-token" {
		t.Errorf("backend Authorization header = %+v", reqs)
	}
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name     string
		jsonForm bool
		username string
		wantErr  string
	}{
		{"json success", true, "newbie", ""},
		{"json taken", true, testutil.FakeUsername, "username: A user with that username already exists."},
		{"redirect success", false, "newbie", ""},
		{"form re-rendered", false, testutil.FakeUsername, "registration rejected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := testutil.NewFakeBackend()
			fb.JSONLogin = tt.jsonForm
			c := newClient(t, fb)

			err := c.Register(context.Background(), webapi.Registration{
				Username: tt.username,
				Email:    "someone@example.com",
				FullName: "Some One",
				Password: "long-enough-pw",
			})
			if tt.wantErr != "" {
				if !apperrors.HasCode(err, apperrors.ErrCodeValidation) || err.Error() != tt.wantErr {
					t.Errorf("expected validation error %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Register: %v", err)
			}
			// The new account is signed in.
			if _, err := c.ScrapeHistory(context.Background()); err != nil {
				t.Errorf("session not usable after register: %v", err)
			}
		})
	}
}

func TestRegistration_Validate(t *testing.T) {
	valid := webapi.Registration{Username: "u", Email: "u@example.com", FullName: "U", Password: "p"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	withDate := valid
	withDate.DateOfBirth = "1999-04-01"
	if err := withDate.Validate(); err != nil {
		t.Errorf("valid date rejected: %v", err)
	}

	for name, r := range map[string]webapi.Registration{
		"no username": {Email: "u@example.com", FullName: "U", Password: "p"},
		"no name":     {Username: "u", Email: "u@example.com", Password: "p"},
		"no password": {Username: "u", Email: "u@example.com", FullName: "U"},
		"bad email":   {Username: "u", Email: "nope", FullName: "U", Password: "p"},
		"bad date":    {Username: "u", Email: "u@example.com", FullName: "U", Password: "p", DateOfBirth: "01/04/1999"},
	} {
		if err := r.Validate(); !apperrors.HasCode(err, apperrors.ErrCodeValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestLogout(t *testing.T) {
	fb := testutil.NewFakeBackend()
	c := loggedIn(t, fb)
	ctx := context.Background()

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := c.ScrapeHistory(ctx); !apperrors.HasCode(err, apperrors.ErrCodeUnauthorized) {
		t.Errorf("expected unauthorized after logout, got %v", err)
	}
}
