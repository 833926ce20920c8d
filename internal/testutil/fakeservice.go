// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	apperrors "rita/internal/errors"
	"rita/internal/service"
)

// ErrNotFound is returned for unknown task ids.
var ErrNotFound = apperrors.New(apperrors.ErrCodeNotFound, "Task not found.", nil)

// FakeService is an in-memory implementation of service.Service for testing.
// Tasks walk through their step list one status query at a time; the last
// step repeats.
type FakeService struct {
	mu      sync.RWMutex
	nextID  int
	chats   []service.ChatRequest
	resets  []bool
	scrapes map[service.TaskID]*fakeTask
	order   []service.TaskID
	videos  map[service.TaskID]*fakeTask
	calls   map[string]int

	// Scripted behavior.
	ChatReply    string
	ScrapeSteps  []service.Status
	VideoSteps   []service.Status
	FailMessage  string
	Results      map[string][]byte // ref -> document
	Downloads    map[string][]byte // format -> document
	Analysis     *service.Analysis
	VideoProfile service.Video

	// Error injection for testing
	ChatErr          error
	ResetChatErr     error
	StartScrapeErr   error
	ScrapeStatusErr  error
	ScrapeHistoryErr error
	DeleteHistoryErr error
	FetchResultErr   error
	DownloadErr      error
	SubmitVideoErr   error
	VideoStatusErr   error
	DeleteVideosErr  error
}

type fakeTask struct {
	id      service.TaskID
	url     string
	queries int
}

// NewFakeService creates a FakeService whose tasks complete on the second
// status query.
func NewFakeService() *FakeService {
	return &FakeService{
		nextID:      1,
		scrapes:     make(map[service.TaskID]*fakeTask),
		videos:      make(map[service.TaskID]*fakeTask),
		calls:       make(map[string]int),
		ScrapeSteps: []service.Status{service.StatusPending, service.StatusComplete},
		VideoSteps:  []service.Status{service.StatusProcessing, service.StatusComplete},
		Results:     make(map[string][]byte),
		Downloads: map[string][]byte{
			"json": []byte(`{"items":[{"title":"A"}]}`),
			"csv":  []byte("title\nA\n"),
		},
		Analysis: &service.Analysis{Summary: "A quick pasta recipe.", MainTopics: []string{"cooking", "pasta"}},
		VideoProfile: service.Video{
			Author: "chef", Description: "Pasta in 5 minutes",
			Plays: 1500000, Likes: 12345, Comments: 999, Shares: 1000,
			Transcript: "Boil water. Add pasta.",
		},
	}
}

// Calls returns how many times the named method was called.
func (f *FakeService) Calls(method string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.calls[method]
}

func (f *FakeService) count(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

// ChatRequests returns the chat submissions received.
func (f *FakeService) ChatRequests() []service.ChatRequest {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]service.ChatRequest, len(f.chats))
	copy(out, f.chats)
	return out
}

// Resets returns the hard flag of every ResetChat call.
func (f *FakeService) Resets() []bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]bool, len(f.resets))
	copy(out, f.resets)
	return out
}

// AddScrape registers an already started scrape and returns its id.
func (f *FakeService) AddScrape(url string) service.TaskID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addScrape(url)
}

func (f *FakeService) addScrape(url string) service.TaskID {
	id := f.newID()
	f.scrapes[id] = &fakeTask{id: id, url: url}
	f.order = append(f.order, id)
	return id
}

// AddVideo registers an already submitted video and returns its id.
func (f *FakeService) AddVideo(url string) service.TaskID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.videos[id] = &fakeTask{id: id, url: url}
	return id
}

// VideoIDs returns the ids of the stored videos.
func (f *FakeService) VideoIDs() []service.TaskID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]service.TaskID, 0, len(f.videos))
	for id := range f.videos {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *FakeService) newID() service.TaskID {
	id := service.TaskID(strconv.Itoa(f.nextID))
	f.nextID++
	return id
}

// Chat implements service.Service.
func (f *FakeService) Chat(ctx context.Context, req service.ChatRequest) (service.ChatReply, error) {
	f.count("Chat")
	if f.ChatErr != nil {
		return service.ChatReply{}, f.ChatErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, req)

	reply := f.ChatReply
	if reply == "" {
		reply = "echo: " + req.Message
	}
	return service.ChatReply{Response: reply, MessageID: int64(len(f.chats))}, nil
}

// ResetChat implements service.Service.
func (f *FakeService) ResetChat(ctx context.Context, hard bool) (service.Ack, error) {
	f.count("ResetChat")
	if f.ResetChatErr != nil {
		return service.Ack{}, f.ResetChatErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, hard)
	f.chats = nil
	return service.Ack{Status: "success", Message: "Chat history refreshed."}, nil
}

// StartScrape implements service.Service.
func (f *FakeService) StartScrape(ctx context.Context, req service.ScrapeRequest) (service.TaskID, error) {
	f.count("StartScrape")
	if f.StartScrapeErr != nil {
		return "", f.StartScrapeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addScrape(req.URL), nil
}

// ScrapeStatus implements service.Service.
func (f *FakeService) ScrapeStatus(ctx context.Context, id service.TaskID) (service.ScrapeStatus, error) {
	f.count("ScrapeStatus")
	if f.ScrapeStatusErr != nil {
		return service.ScrapeStatus{}, f.ScrapeStatusErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.scrapes[id]
	if !ok {
		return service.ScrapeStatus{}, ErrNotFound
	}
	st := service.ScrapeStatus{ID: id, URL: t.url, Status: step(f.ScrapeSteps, t.queries), Cost: "N/A"}
	t.queries++

	switch st.Status {
	case service.StatusComplete:
		st.JSONURL = fmt.Sprintf("/media/scrape_result_%s.json", id)
		st.CSVURL = fmt.Sprintf("/media/scrape_result_%s.csv", id)
		st.Cost = "0.001234"
		st.InputTokens = 1200
		st.OutputTokens = 300
	case service.StatusFailed:
		st.ErrorMessage = f.FailMessage
	}
	return st, nil
}

// ScrapeHistory implements service.Service.
func (f *FakeService) ScrapeHistory(ctx context.Context) ([]service.ScrapeHistoryItem, error) {
	f.count("ScrapeHistory")
	if f.ScrapeHistoryErr != nil {
		return nil, f.ScrapeHistoryErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	items := make([]service.ScrapeHistoryItem, 0, len(f.order))
	for i := len(f.order) - 1; i >= 0; i-- {
		t := f.scrapes[f.order[i]]
		items = append(items, service.ScrapeHistoryItem{
			ID: t.id, URL: t.url, CreatedAt: "10:00:00, 01/03/2026",
			Status: step(f.ScrapeSteps, t.queries-1),
		})
	}
	return items, nil
}

// DeleteScrapeHistory implements service.Service.
func (f *FakeService) DeleteScrapeHistory(ctx context.Context) (service.Ack, error) {
	f.count("DeleteScrapeHistory")
	if f.DeleteHistoryErr != nil {
		return service.Ack{}, f.DeleteHistoryErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrapes = make(map[service.TaskID]*fakeTask)
	f.order = nil
	return service.Ack{Status: "success", Message: "History deleted successfully."}, nil
}

// FetchResult implements service.Service.
func (f *FakeService) FetchResult(ctx context.Context, ref string) ([]byte, error) {
	f.count("FetchResult")
	if f.FetchResultErr != nil {
		return nil, f.FetchResultErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if doc, ok := f.Results[ref]; ok {
		return doc, nil
	}
	if doc, ok := f.Downloads["json"]; ok {
		return doc, nil
	}
	return nil, apperrors.New(apperrors.ErrCodeNotFound, "not found", nil)
}

// Download implements service.Service.
func (f *FakeService) Download(ctx context.Context, id service.TaskID, format string) ([]byte, error) {
	f.count("Download")
	if f.DownloadErr != nil {
		return nil, f.DownloadErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.scrapes[id]
	if !ok || step(f.ScrapeSteps, t.queries-1) != service.StatusComplete {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "result is not ready", nil)
	}
	doc, ok := f.Downloads[format]
	if !ok {
		return nil, apperrors.Validation(fmt.Sprintf("unknown format %q", format))
	}
	return doc, nil
}

// SubmitVideo implements service.Service.
func (f *FakeService) SubmitVideo(ctx context.Context, videoURL string) (service.Video, error) {
	f.count("SubmitVideo")
	if f.SubmitVideoErr != nil {
		return service.Video{}, f.SubmitVideoErr
	}
	v := f.VideoProfile
	v.ID = f.AddVideo(videoURL)
	v.DownloadURL = videoURL
	return v, nil
}

// VideoStatus implements service.Service.
func (f *FakeService) VideoStatus(ctx context.Context, id service.TaskID) (service.VideoStatus, error) {
	f.count("VideoStatus")
	if f.VideoStatusErr != nil {
		return service.VideoStatus{}, f.VideoStatusErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.videos[id]
	if !ok {
		return service.VideoStatus{}, apperrors.New(apperrors.ErrCodeNotFound, "Video not found.", nil)
	}
	st := service.VideoStatus{Status: step(f.VideoSteps, t.queries)}
	t.queries++
	switch st.Status {
	case service.StatusComplete:
		st.Analysis = f.Analysis
	case service.StatusFailed:
		st.Error = f.FailMessage
	}
	return st, nil
}

// DeleteVideos implements service.Service.
func (f *FakeService) DeleteVideos(ctx context.Context, ids []service.TaskID) (service.Ack, error) {
	f.count("DeleteVideos")
	if f.DeleteVideosErr != nil {
		return service.Ack{}, f.DeleteVideosErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if _, ok := f.videos[id]; ok {
			delete(f.videos, id)
			deleted++
		}
	}
	if deleted == 0 {
		return service.Ack{}, apperrors.New(apperrors.ErrCodeNotFound, "Nothing to delete.", nil)
	}
	return service.Ack{Status: "success", Message: fmt.Sprintf("Deleted %d items.", deleted)}, nil
}

func step(steps []service.Status, i int) service.Status {
	if len(steps) == 0 {
		return service.StatusComplete
	}
	if i < 0 {
		i = 0
	}
	if i >= len(steps) {
		i = len(steps) - 1
	}
	return steps[i]
}
