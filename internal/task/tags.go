package task

import "strings"

// Tags is an ordered set of field names for a scrape.
type Tags struct {
	items []string
}

// ParseTags splits a comma-separated list into tags.
func ParseTags(s string) *Tags {
	t := &Tags{}
	for _, part := range strings.Split(s, ",") {
		t.Add(part)
	}
	return t
}

// Add appends a trimmed label. Empty and duplicate labels are ignored.
func (t *Tags) Add(label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}
	for _, existing := range t.items {
		if existing == label {
			return false
		}
	}
	t.items = append(t.items, label)
	return true
}

// Items returns the labels in insertion order.
func (t *Tags) Items() []string {
	out := make([]string, len(t.items))
	copy(out, t.items)
	return out
}

// Len returns the number of labels.
func (t *Tags) Len() int { return len(t.items) }

// String joins the labels with commas, the backend's wire form.
func (t *Tags) String() string {
	return strings.Join(t.items, ",")
}
