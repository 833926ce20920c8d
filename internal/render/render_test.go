package render_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"rita/internal/render"
	"rita/internal/service"
)

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1K"},
		{1050, "1.1K"},
		{1500, "1.5K"},
		{12345, "12.3K"},
		{999_949, "999.9K"},
		{999_999, "1M"},
		{1_000_000, "1M"},
		{1_500_000, "1.5M"},
		{23_000_000, "23M"},
	}
	for _, tt := range tests {
		if got := render.FormatCount(tt.in); got != tt.want {
			t.Errorf("FormatCount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatCost(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.0000"},
		{1.23456, "$1.2346"},
		{0.00012, "$0.0001"},
		{12, "$12.0000"},
	}
	for _, tt := range tests {
		if got := render.FormatCost(tt.in); got != tt.want {
			t.Errorf("FormatCost(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseCost(t *testing.T) {
	tests := []struct {
		in   service.Text
		want float64
	}{
		{"0.0123", 0.0123},
		{"N/A", 0},
		{"", 0},
		{" 2 ", 2},
	}
	for _, tt := range tests {
		if got := render.ParseCost(tt.in); got != tt.want {
			t.Errorf("ParseCost(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := render.Truncate("short", 40); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := render.Truncate("abcdef", 3); got != "abc..." {
		t.Errorf("got %q", got)
	}
	if got := render.Truncate("xin chào thế giới", 8); got != "xin chào..." {
		t.Errorf("rune-aware truncation failed: %q", got)
	}
}

func TestBubble_HTMLEscapesBeforeLineBreaks(t *testing.T) {
	b := render.NewBubble(service.RoleUser, "<script>alert(1)</script>\nline & two", nil)
	want := "&lt;script&gt;alert(1)&lt;/script&gt;<br>line &amp; two"
	if got := b.HTML(); got != want {
		t.Errorf("HTML() = %q, want %q", got, want)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"csi colours", "\x1b[31mred\x1b[0m\tok\nnext\x07\r", "red\tok\nnext"},
		{"osc title", "\x1b]0;pwned\x07hello", "hello"},
		{"osc hyperlink", "\x1b]8;;https://evil.example\x1b\\link\x1b]8;;\x1b\\", "link"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := render.Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

type recorder struct {
	events []string
}

func (r *recorder) Appended(b render.Bubble) {
	r.events = append(r.events, string(b.Role)+":"+b.Text)
}

func (r *recorder) Typing(on bool) {
	if on {
		r.events = append(r.events, "typing")
	} else {
		r.events = append(r.events, "idle")
	}
}

func TestTranscript_Observer(t *testing.T) {
	rec := &recorder{}
	tr := render.NewTranscript(rec)

	tr.Append(service.RoleUser, "hello", nil)
	tr.SetTyping(true)
	tr.SetTyping(true)
	tr.Append(service.RoleAssistant, "hi", nil)
	tr.SetTyping(false)

	want := []string{"user:hello", "typing", "assistant:hi", "idle"}
	if !reflect.DeepEqual(rec.events, want) {
		t.Errorf("events = %v, want %v", rec.events, want)
	}
	if len(tr.Bubbles()) != 2 || tr.Typing() {
		t.Errorf("unexpected transcript state")
	}
	tr.Clear()
	if len(tr.Bubbles()) != 0 {
		t.Error("Clear left bubbles")
	}
}

func TestTableFromJSON_FirstKeyKeepsOrder(t *testing.T) {
	doc := `{"products": [
		{"product_name": "Lamp", "price": 12.50, "in_stock": true, "tags": ["home","light"]},
		{"product_name": "Desk", "price": 80, "in_stock": false, "extra": 1},
		{"price": null, "product_name": "Chair"}
	], "meta": {"count": 3}}`

	got, err := render.TableFromJSON([]byte(doc))
	if err != nil {
		t.Fatalf("TableFromJSON: %v", err)
	}
	wantHeaders := []string{"product name", "price", "in stock", "tags"}
	if !reflect.DeepEqual(got.Headers, wantHeaders) {
		t.Errorf("headers = %v, want %v", got.Headers, wantHeaders)
	}
	wantRows := [][]string{
		{"Lamp", "12.5", "true", "home,light"},
		{"Desk", "80", "false", ""},
		{"Chair", "", "", ""},
	}
	if !reflect.DeepEqual(got.Rows, wantRows) {
		t.Errorf("rows = %v, want %v", got.Rows, wantRows)
	}
}

func TestTableFromJSON_Fallbacks(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantKeys []string
		wantRows int
	}{
		{"top-level array", `[{"a":1},{"a":2}]`, []string{"a"}, 2},
		{"later array key", `{"title":"x","items":[{"b":{"c":1}}]}`, []string{"b"}, 1},
		{"no list", `{"title":"x"}`, nil, 0},
		{"empty list", `{"items":[]}`, nil, 0},
		{"scalar list", `{"names":["a","b"]}`, []string{"value"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := render.TableFromJSON([]byte(tt.doc))
			if err != nil {
				t.Fatalf("TableFromJSON: %v", err)
			}
			if !reflect.DeepEqual(got.Keys, tt.wantKeys) {
				t.Errorf("keys = %v, want %v", got.Keys, tt.wantKeys)
			}
			if len(got.Rows) != tt.wantRows {
				t.Errorf("rows = %d, want %d", len(got.Rows), tt.wantRows)
			}
		})
	}
}

func TestTableFromJSON_NestedObjectCell(t *testing.T) {
	got, err := render.TableFromJSON([]byte(`{"items":[{"b":{"z":1,"a":"q"}}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.Rows[0][0] != `{"z":1,"a":"q"}` {
		t.Errorf("cell = %q", got.Rows[0][0])
	}
}

func TestTableFromJSON_LiteralKeys(t *testing.T) {
	got, err := render.TableFromJSON([]byte(`{"items":[{"price.usd":1.5,"sku*":"A-1"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"price.usd", "sku*"}; !reflect.DeepEqual(got.Keys, want) {
		t.Errorf("keys = %v, want %v", got.Keys, want)
	}
	if want := []string{"1.5", "A-1"}; !reflect.DeepEqual(got.Rows[0], want) {
		t.Errorf("row = %v, want %v", got.Rows[0], want)
	}
}

func TestTableFromJSON_Invalid(t *testing.T) {
	for _, doc := range []string{``, `{"a":`, `{"a":1} {}`} {
		if _, err := render.TableFromJSON([]byte(doc)); !errors.Is(err, render.ErrInvalidResult) {
			t.Errorf("expected ErrInvalidResult for %q, got %v", doc, err)
		}
	}
}

func TestNewUsageCard(t *testing.T) {
	card := render.NewUsageCard(service.ScrapeStatus{InputTokens: 1200, OutputTokens: 300, Cost: "0.000321"})
	want := render.UsageCard{InputTokens: "1200", OutputTokens: "300", Cost: "$0.0003"}
	if card != want {
		t.Errorf("card = %+v, want %+v", card, want)
	}
}

func TestScrapeRows_TruncatesURL(t *testing.T) {
	url := "https://example.com/" + strings.Repeat("p", 60)
	rows := render.ScrapeRows([]service.ScrapeHistoryItem{{ID: "4", URL: url, Status: service.StatusComplete}})
	if got := rows[0].URL; got != url[:40]+"..." {
		t.Errorf("URL = %q", got)
	}
}

func TestNewVideoCard(t *testing.T) {
	card := render.NewVideoCard(service.Video{
		ID: "9", Author: "cook", Plays: 1_500_000, Likes: 999, Comments: 1000, Shares: 12345,
	})
	if card.Title != render.NoDescription || card.Transcript != render.NoTranscript {
		t.Errorf("fallbacks not applied: %+v", card)
	}
	if card.Plays != "1.5M" || card.Likes != "999" || card.Comments != "1K" || card.Shares != "12.3K" {
		t.Errorf("counts = %s %s %s %s", card.Plays, card.Likes, card.Comments, card.Shares)
	}
	if card.Author != "@cook" {
		t.Errorf("author = %q", card.Author)
	}
}

func TestNewAnalysisView(t *testing.T) {
	if v := render.NewAnalysisView(nil); v.Summary != render.NoSummary || v.Topics != nil {
		t.Errorf("nil analysis: %+v", v)
	}
	v := render.NewAnalysisView(&service.Analysis{Summary: " Quick pasta ", MainTopics: []string{"food", " ", "italy"}})
	if v.Summary != "Quick pasta" || !reflect.DeepEqual(v.Topics, []string{"food", "italy"}) {
		t.Errorf("view = %+v", v)
	}
}

func TestNewVideoRow(t *testing.T) {
	desc := strings.Repeat("word ", 30)
	row := render.NewVideoRow("3", desc, "me", "COMPLETE", "https://v.example/3")
	if len([]rune(row.Description)) != render.VideoDescriptionLimit+3 {
		t.Errorf("description not truncated: %q", row.Description)
	}
	if row := render.NewVideoRow("4", "  ", "me", "", ""); row.Description != render.NoDescription {
		t.Errorf("blank description = %q", row.Description)
	}
}
