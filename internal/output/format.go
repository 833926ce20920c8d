// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"rita/internal/render"
	"rita/internal/service"
)

const (
	// Separator is the rule printed above and below card sections.
	Separator = "------------"

	// NoRows is printed for a result table without rows.
	NoRows = "(no rows)"
)

// roleLabel names the speaker of a bubble.
func roleLabel(r service.Role) string {
	if r == service.RoleUser {
		return "you"
	}
	return "rita"
}

// FormatBubble writes a chat message. Continuation lines are indented
// under the first.
// Format: "{LABEL}> {LINE}\n" then "{PAD}{LINE}\n" for each further line.
func FormatBubble(w io.Writer, b render.Bubble) {
	label := roleLabel(b.Role)
	pad := strings.Repeat(" ", len(label)+2)

	lines := strings.Split(strings.ReplaceAll(b.Text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if i == 0 {
			fmt.Fprintf(w, "%s> %s\n", label, line)
			continue
		}
		fmt.Fprintf(w, "%s%s\n", pad, line)
	}
	if len(b.Files) > 0 {
		fmt.Fprintf(w, "%s[attached: %s]\n", pad, strings.Join(b.Files, ", "))
	}
}

// FormatTyping writes the typing indicator.
func FormatTyping(w io.Writer) {
	fmt.Fprintln(w, "rita is typing...")
}

// FormatTable writes a result table with aligned columns.
func FormatTable(w io.Writer, t render.Table) {
	if t.Empty() {
		fmt.Fprintln(w, NoRows)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers(t.Headers), "\t"))
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = normalizeLine(c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

func headers(in []string) []string {
	out := make([]string, len(in))
	for i, h := range in {
		out[i] = strings.ToUpper(h)
	}
	return out
}

// FormatScrapeStatus writes the one-line state of a scraping task.
// Format: "task {ID}: {STATUS}" plus " ({URL})" when the URL is known.
func FormatScrapeStatus(w io.Writer, st service.ScrapeStatus) {
	fmt.Fprintf(w, "task %s: %s", st.ID, st.Status)
	if st.URL != "" {
		fmt.Fprintf(w, " (%s)", st.URL)
	}
	fmt.Fprintln(w)
}

// FormatUsage writes the usage card of a finished scrape.
func FormatUsage(w io.Writer, c render.UsageCard) {
	fmt.Fprintf(w, "Input tokens:  %s\n", c.InputTokens)
	fmt.Fprintf(w, "Output tokens: %s\n", c.OutputTokens)
	fmt.Fprintf(w, "Cost:          %s\n", c.Cost)
}

// FormatScrapeHistory writes the scraper history, or the placeholder row
// when it is empty.
func FormatScrapeHistory(w io.Writer, rows []render.ScrapeRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, render.HistoryPlaceholder)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tURL\tSTATUS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.CreatedAt, normalizeLine(r.URL), r.Status)
	}
	tw.Flush()
}

// FormatVideoCard writes the metadata of a submitted video.
func FormatVideoCard(w io.Writer, c render.VideoCard) {
	fmt.Fprintln(w, Separator)
	fmt.Fprintf(w, "%s  %s\n", c.Author, normalizeLine(c.Title))
	fmt.Fprintln(w, Separator)
	fmt.Fprintf(w, "plays %s  likes %s  comments %s  shares %s\n", c.Plays, c.Likes, c.Comments, c.Shares)
	if c.DownloadURL != "" {
		fmt.Fprintf(w, "download: %s\n", c.DownloadURL)
	}
	fmt.Fprintln(w, "Transcript:")
	writeIndented(w, c.Transcript)
}

// FormatAnalysis writes a video's AI analysis.
func FormatAnalysis(w io.Writer, a render.AnalysisView) {
	fmt.Fprintln(w, "Summary:")
	writeIndented(w, a.Summary)
	if len(a.Topics) == 0 {
		return
	}
	fmt.Fprintln(w, "Main topics:")
	for _, t := range a.Topics {
		fmt.Fprintf(w, "  - %s\n", normalizeLine(t))
	}
}

// FormatVideoHistory writes the analyzer history, or the placeholder row
// when it is empty.
func FormatVideoHistory(w io.Writer, rows []render.VideoRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, render.HistoryPlaceholder)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAUTHOR\tSTATUS\tDESCRIPTION")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Author, r.Status, r.Description)
	}
	tw.Flush()
}

func writeIndented(w io.Writer, text string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

// normalizeLine keeps a cell on one line.
func normalizeLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
