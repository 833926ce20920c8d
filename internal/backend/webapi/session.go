package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"
)

// sessionFile is the on-disk form of the backend session cookies.
type sessionFile struct {
	BaseURL string          `json:"base_url"`
	Cookies []sessionCookie `json:"cookies"`
	SavedAt time.Time       `json:"saved_at"`
}

type sessionCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// loadSession restores saved cookies into jar. A missing file, or one saved
// for another server, loads nothing.
func loadSession(path string, jar http.CookieJar, base *url.URL) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var s sessionFile
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid %s: %w", path, err)
	}
	if s.BaseURL != base.String() {
		return nil
	}

	cookies := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	jar.SetCookies(base, cookies)
	return nil
}

// saveSession writes the jar's cookies for base with mode 0600.
func saveSession(path string, jar http.CookieJar, base *url.URL) error {
	s := sessionFile{BaseURL: base.String(), SavedAt: time.Now().UTC()}
	for _, c := range jar.Cookies(base) {
		s.Cookies = append(s.Cookies, sessionCookie{Name: c.Name, Value: c.Value})
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
