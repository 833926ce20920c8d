// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Status is the backend-authoritative state of a task.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusComplete   Status = "COMPLETE"
	StatusFailed     Status = "FAILED"
)

// ParseStatus normalizes a status string from the backend.
func ParseStatus(s string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(s)))
}

// Terminal reports whether no further transitions follow.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// TaskID is an opaque task identifier assigned by the backend.
// The backend sends numeric ids; they are kept as their decimal text.
type TaskID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *TaskID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TaskID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid task id %s", data)
	}
	*id = TaskID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as numbers so the backend can match
// them against integer primary keys.
func (id TaskID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Text is a string field the backend sometimes sends as a number.
type Text string

// UnmarshalJSON accepts strings, numbers and null.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(data)
	}
	return nil
}

// Task represents one unit of asynchronous backend work.
// Payload is set only when Status is COMPLETE, Error only when FAILED.
type Task struct {
	ID      TaskID
	Status  Status
	Payload any
	Error   string
}

// Role tags a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Attachment is a user-selected file staged for a chat message.
type Attachment struct {
	Name string
	Path string
	Size int64
}

// ChatRequest is a chat submission.
type ChatRequest struct {
	Message   string
	Files     []Attachment
	SearchWeb bool
}

// ChatReply is the synchronous answer to a chat submission.
type ChatReply struct {
	Response  string
	MessageID int64
}

// Ack is the generic {status, message} acknowledgement.
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// OK reports whether the backend acknowledged success.
func (a Ack) OK() bool {
	return a.Status == "success"
}

// ScrapeRequest starts a scraping task.
type ScrapeRequest struct {
	URL    string
	Fields []string
	Model  string
}

// ScrapeStatus is the state of a scraping task.
type ScrapeStatus struct {
	ID           TaskID `json:"id"`
	Status       Status `json:"status"`
	URL          string `json:"url"`
	CreatedAt    string `json:"created_at"`
	JSONURL      string `json:"json_url"`
	CSVURL       string `json:"csv_url"`
	Cost         Text   `json:"cost"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	ErrorMessage string `json:"error_message"`
}

// ScrapeHistoryItem is one row of the scraper history.
type ScrapeHistoryItem struct {
	ID        TaskID `json:"id"`
	CreatedAt string `json:"created_at"`
	URL       string `json:"url"`
	Status    Status `json:"status"`
}

// Video is the metadata returned when a video is submitted for analysis.
type Video struct {
	ID          TaskID `json:"id"`
	CoverURL    string `json:"cover_url"`
	Description string `json:"description"`
	Author      string `json:"author"`
	DownloadURL string `json:"download_url"`
	Plays       int64  `json:"plays"`
	Likes       int64  `json:"likes"`
	Comments    int64  `json:"comments"`
	Shares      int64  `json:"shares"`
	Transcript  string `json:"transcript"`
}

// Analysis is the AI analysis of a video.
type Analysis struct {
	Summary    string   `json:"summary"`
	MainTopics []string `json:"main_topics"`
}

// VideoStatus is the state of a video analysis.
// Analysis is nil unless Status is COMPLETE and the backend sent an object.
type VideoStatus struct {
	Status   Status
	Analysis *Analysis
	Error    string
}
