package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"

	apperrors "rita/internal/errors"
	"rita/internal/service"
)

// Backend endpoints.
const (
	pathChat          = "/api/chat/"
	pathChatDelete    = "/api/chat/delete/"
	pathChatRefresh   = "/api/chat/refresh/"
	pathScrapeStart   = "/api/web-scraper/start/"
	pathScrapeStatus  = "/api/web-scraper/status/%s/"
	pathScrapeHistory = "/api/web-scraper/history/"
	pathScrapeDelete  = "/api/web-scraper/history/delete/"
	pathDownload      = "/download/scrape/%s/%s/"
	pathVideoSubmit   = "/api/tiktok-analyzer/submit/"
	pathVideoStatus   = "/api/tiktok-analyzer/status/"
	pathVideoDelete   = "/api/tiktok-history/delete/"
)

// Chat posts a message. Attachments go as multipart form data with the
// CSRF token as a form field; a text-only message is a urlencoded form.
func (c *Client) Chat(ctx context.Context, in service.ChatRequest) (service.ChatReply, error) {
	ctx, cancel := context.WithTimeout(ctx, ChatTimeout)
	defer cancel()

	var req *http.Request
	var err error
	if len(in.Files) > 0 {
		req, err = c.newMultipartChat(ctx, in)
	} else {
		form := url.Values{"message": {in.Message}}
		if in.SearchWeb {
			form.Set("search_web", "true")
		}
		req, err = c.newUnsafeRequest(ctx, pathChat, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	}
	if err != nil {
		return service.ChatReply{}, err
	}

	var out struct {
		Response  string `json:"response"`
		Answer    string `json:"answer"`
		MessageID int64  `json:"model_message_id"`
	}
	if err := c.do(ctx, req, &out); err != nil {
		return service.ChatReply{}, err
	}

	reply := service.ChatReply{Response: out.Response, MessageID: out.MessageID}
	if reply.Response == "" {
		reply.Response = out.Answer
	}
	if reply.Response == "" {
		return service.ChatReply{}, apperrors.Application("the assistant returned an empty answer")
	}
	return reply, nil
}

func (c *Client) newMultipartChat(ctx context.Context, in service.ChatRequest) (*http.Request, error) {
	tok, err := c.csrfToken(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField(csrfField, tok)
	mw.WriteField("message", in.Message)
	if in.SearchWeb {
		mw.WriteField("search_web", "true")
	}
	for _, f := range in.Files {
		if err := attach(mw, f); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathChat, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	req.Header.Set(csrfHeader, tok)
	return req, nil
}

func attach(mw *multipart.Writer, f service.Attachment) error {
	src, err := os.Open(f.Path)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeValidation, fmt.Sprintf("cannot read %s", f.Name), err)
	}
	defer src.Close()

	part, err := mw.CreateFormFile("files", f.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return apperrors.New(apperrors.ErrCodeValidation, fmt.Sprintf("cannot read %s", f.Name), err)
	}
	return nil
}

// ResetChat clears the chat history.
func (c *Client) ResetChat(ctx context.Context, hard bool) (service.Ack, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	path := pathChatRefresh
	if hard {
		path = pathChatDelete
	}
	return c.postAck(ctx, path, nil)
}

// StartScrape submits a scraping task.
func (c *Client) StartScrape(ctx context.Context, in service.ScrapeRequest) (service.TaskID, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	req, err := c.newJSONRequest(ctx, pathScrapeStart, map[string]string{
		"url":    in.URL,
		"fields": strings.Join(in.Fields, ","),
		"model":  in.Model,
	})
	if err != nil {
		return "", err
	}

	var out struct {
		Status string         `json:"status"`
		TaskID service.TaskID `json:"task_id"`
	}
	if err := c.do(ctx, req, &out); err != nil {
		return "", err
	}
	if out.Status != "ok" || out.TaskID == "" {
		return "", apperrors.Application("could not start the scraping task")
	}
	return out.TaskID, nil
}

// ScrapeStatus queries a scraping task.
func (c *Client) ScrapeStatus(ctx context.Context, id service.TaskID) (service.ScrapeStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf(pathScrapeStatus, url.PathEscape(string(id))), nil, "")
	if err != nil {
		return service.ScrapeStatus{}, err
	}
	var out service.ScrapeStatus
	if err := c.do(ctx, req, &out); err != nil {
		return service.ScrapeStatus{}, err
	}
	out.Status = service.ParseStatus(string(out.Status))
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

// ScrapeHistory lists past scraping tasks.
func (c *Client) ScrapeHistory(ctx context.Context) ([]service.ScrapeHistoryItem, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, pathScrapeHistory, nil, "")
	if err != nil {
		return nil, err
	}
	var out struct {
		History []service.ScrapeHistoryItem `json:"history"`
	}
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	for i := range out.History {
		out.History[i].Status = service.ParseStatus(string(out.History[i].Status))
	}
	return out.History, nil
}

// DeleteScrapeHistory deletes the whole scraper history.
func (c *Client) DeleteScrapeHistory(ctx context.Context) (service.Ack, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()
	return c.postAck(ctx, pathScrapeDelete, nil)
}

// FetchResult downloads a result document. Relative references resolve
// against the backend; the session cookies and the bearer token only go to
// the backend host.
func (c *Client) FetchResult(ctx context.Context, ref string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, ref, nil, "")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	return c.fetch(ctx, req)
}

// Download returns a finished scrape as "json" or "csv".
func (c *Client) Download(ctx context.Context, id service.TaskID, format string) ([]byte, error) {
	format = strings.ToLower(format)
	if format != "json" && format != "csv" {
		return nil, apperrors.Validation(fmt.Sprintf("unknown format %q (want json or csv)", format))
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf(pathDownload, url.PathEscape(string(id)), format), nil, "")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	data, err := c.fetch(ctx, req)
	if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		return nil, apperrors.New(apperrors.ErrCodeNotFound,
			fmt.Sprintf("result %s of task %s is not ready or does not exist", format, id), err)
	}
	return data, err
}

// SubmitVideo submits a video for analysis.
func (c *Client) SubmitVideo(ctx context.Context, videoURL string) (service.Video, error) {
	ctx, cancel := context.WithTimeout(ctx, ChatTimeout)
	defer cancel()

	req, err := c.newJSONRequest(ctx, pathVideoSubmit, map[string]string{"video_url": videoURL})
	if err != nil {
		return service.Video{}, err
	}
	var out struct {
		Status string        `json:"status"`
		Video  service.Video `json:"video"`
	}
	if err := c.do(ctx, req, &out); err != nil {
		return service.Video{}, err
	}
	if out.Status != "processing" || out.Video.ID == "" {
		return service.Video{}, apperrors.Application("the analyzer did not accept the video")
	}
	return out.Video, nil
}

// VideoStatus queries a video analysis.
func (c *Client) VideoStatus(ctx context.Context, id service.TaskID) (service.VideoStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	ref := pathVideoStatus + "?" + url.Values{"id": {string(id)}}.Encode()
	req, err := c.newRequest(ctx, http.MethodGet, ref, nil, "")
	if err != nil {
		return service.VideoStatus{}, err
	}
	var out struct {
		Status   string          `json:"status"`
		Analysis json.RawMessage `json:"analysis"`
		Error    string          `json:"error_message"`
	}
	if err := c.do(ctx, req, &out); err != nil {
		return service.VideoStatus{}, err
	}

	st := service.VideoStatus{Status: service.ParseStatus(out.Status), Error: out.Error}
	if st.Status == service.StatusComplete {
		var a service.Analysis
		// Anything but an object leaves the analysis empty.
		if json.Unmarshal(out.Analysis, &a) == nil && bytes.HasPrefix(bytes.TrimSpace(out.Analysis), []byte("{")) {
			st.Analysis = &a
		}
	}
	return st, nil
}

// DeleteVideos deletes analyzed videos by id.
func (c *Client) DeleteVideos(ctx context.Context, ids []service.TaskID) (service.Ack, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()
	return c.postAck(ctx, pathVideoDelete, map[string][]service.TaskID{"ids": ids})
}

// postAck posts payload as JSON (or an empty body when nil) and decodes the
// {status, message} acknowledgement.
func (c *Client) postAck(ctx context.Context, path string, payload any) (service.Ack, error) {
	var req *http.Request
	var err error
	if payload == nil {
		req, err = c.newUnsafeRequest(ctx, path, nil, "")
	} else {
		req, err = c.newJSONRequest(ctx, path, payload)
	}
	if err != nil {
		return service.Ack{}, err
	}
	var ack service.Ack
	if err := c.do(ctx, req, &ack); err != nil {
		return service.Ack{}, err
	}
	return ack, nil
}
