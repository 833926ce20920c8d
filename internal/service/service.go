// Package service defines the backend-agnostic interface for task operations.
package service

import "context"

// Service defines the interface for backend operations.
// All HTTP calls go through this interface; commands and features never
// build requests themselves.
type Service interface {
	// Chat posts a message and returns the assistant's answer.
	Chat(ctx context.Context, req ChatRequest) (ChatReply, error)

	// ResetChat clears the chat history. Hard uses the delete endpoint,
	// otherwise the refresh endpoint.
	ResetChat(ctx context.Context, hard bool) (Ack, error)

	// StartScrape submits a scraping task and returns its id.
	StartScrape(ctx context.Context, req ScrapeRequest) (TaskID, error)

	// ScrapeStatus queries a scraping task.
	ScrapeStatus(ctx context.Context, id TaskID) (ScrapeStatus, error)

	// ScrapeHistory returns past scraping tasks, newest first.
	ScrapeHistory(ctx context.Context) ([]ScrapeHistoryItem, error)

	// DeleteScrapeHistory deletes the whole scraper history.
	DeleteScrapeHistory(ctx context.Context) (Ack, error)

	// FetchResult downloads a result document by URL or backend-relative path.
	FetchResult(ctx context.Context, ref string) ([]byte, error)

	// Download returns a finished scrape as "json" or "csv".
	Download(ctx context.Context, id TaskID, format string) ([]byte, error)

	// SubmitVideo submits a video URL; analysis continues in the background.
	SubmitVideo(ctx context.Context, videoURL string) (Video, error)

	// VideoStatus queries a video analysis.
	VideoStatus(ctx context.Context, id TaskID) (VideoStatus, error)

	// DeleteVideos deletes analyzed videos by id.
	DeleteVideos(ctx context.Context, ids []TaskID) (Ack, error)
}
