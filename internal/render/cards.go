package render

import (
	"strconv"
	"strings"

	"rita/internal/service"
)

// Placeholders shown instead of empty content.
const (
	HistoryPlaceholder    = "No history yet."
	NoDescription         = "No description"
	NoTranscript          = "No transcript available."
	NoSummary             = "No summary available."
	AnalysisFailedMessage = "AI analysis failed. Please try again."
)

// Display limits for history rows.
const (
	VideoDescriptionLimit = 80
	ScrapeURLLimit        = 40
)

// UsageCard summarizes the cost of a finished scrape.
type UsageCard struct {
	InputTokens  string
	OutputTokens string
	Cost         string
}

// NewUsageCard builds the usage card of a terminal scrape.
func NewUsageCard(s service.ScrapeStatus) UsageCard {
	return UsageCard{
		InputTokens:  strconv.FormatInt(s.InputTokens, 10),
		OutputTokens: strconv.FormatInt(s.OutputTokens, 10),
		Cost:         FormatCost(ParseCost(s.Cost)),
	}
}

// ScrapeRow is one line of the scraper history.
type ScrapeRow struct {
	ID        string
	CreatedAt string
	URL       string
	Status    string
}

// ScrapeRows renders history items, truncating long URLs.
func ScrapeRows(items []service.ScrapeHistoryItem) []ScrapeRow {
	rows := make([]ScrapeRow, len(items))
	for i, item := range items {
		rows[i] = ScrapeRow{
			ID:        string(item.ID),
			CreatedAt: item.CreatedAt,
			URL:       Truncate(item.URL, ScrapeURLLimit),
			Status:    string(item.Status),
		}
	}
	return rows
}

// VideoCard is the metadata view of a submitted video.
type VideoCard struct {
	ID          string
	Title       string
	Author      string
	CoverURL    string
	DownloadURL string
	Plays       string
	Likes       string
	Comments    string
	Shares      string
	Transcript  string
}

// NewVideoCard builds the metadata view with abbreviated counts.
func NewVideoCard(v service.Video) VideoCard {
	title := Sanitize(strings.TrimSpace(v.Description))
	if title == "" {
		title = NoDescription
	}
	transcript := Sanitize(strings.TrimSpace(v.Transcript))
	if transcript == "" {
		transcript = NoTranscript
	}
	return VideoCard{
		ID:          string(v.ID),
		Title:       title,
		Author:      "@" + v.Author,
		CoverURL:    v.CoverURL,
		DownloadURL: v.DownloadURL,
		Plays:       FormatCount(v.Plays),
		Likes:       FormatCount(v.Likes),
		Comments:    FormatCount(v.Comments),
		Shares:      FormatCount(v.Shares),
		Transcript:  transcript,
	}
}

// AnalysisView is the AI analysis of a video.
type AnalysisView struct {
	Summary string
	Topics  []string
}

// NewAnalysisView builds the analysis view. A missing analysis yields the
// summary fallback and no topics.
func NewAnalysisView(a *service.Analysis) AnalysisView {
	if a == nil {
		return AnalysisView{Summary: NoSummary}
	}
	summary := Sanitize(strings.TrimSpace(a.Summary))
	if summary == "" {
		summary = NoSummary
	}
	var topics []string
	for _, topic := range a.MainTopics {
		if topic = Sanitize(strings.TrimSpace(topic)); topic != "" {
			topics = append(topics, topic)
		}
	}
	return AnalysisView{Summary: summary, Topics: topics}
}

// VideoRow is one card of the analyzer history.
type VideoRow struct {
	ID          string
	Description string
	Author      string
	Status      string
	URL         string
}

// NewVideoRow builds a history card, truncating long descriptions.
func NewVideoRow(id, description, author, status, url string) VideoRow {
	description = strings.Join(strings.Fields(Sanitize(description)), " ")
	if description == "" {
		description = NoDescription
	}
	return VideoRow{
		ID:          id,
		Description: Truncate(description, VideoDescriptionLimit),
		Author:      "@" + author,
		Status:      status,
		URL:         url,
	}
}
