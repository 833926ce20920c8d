package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	apperrors "rita/internal/errors"
	"rita/internal/service"
)

var _ service.Service = (*Client)(nil)

// Login signs in with a username and password and keeps the resulting
// session cookies. The sign-in form answers AJAX posts with JSON
// {status, redirect_url, message}; a plain redirect away from the login
// page also counts as success.
func (c *Client) Login(ctx context.Context, username, password string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	tok, err := c.csrfToken(ctx)
	if err != nil {
		return err
	}
	form := url.Values{
		"username": {username},
		"password": {password},
		csrfField:  {tok},
	}
	req, err := c.newRequest(ctx, http.MethodPost, loginPath, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	req.Header.Set(csrfHeader, tok)

	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return transportError(ctx, err)
	}

	if isJSONResponse(resp) {
		var out struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return apperrors.New(apperrors.ErrCodeApplication, "unexpected response from server", err)
		}
		if resp.StatusCode < 300 && out.Status == "success" {
			return nil
		}
		msg := out.Message
		if msg == "" {
			msg = "sign-in failed"
		}
		return apperrors.New(apperrors.ErrCodeUnauthorized, msg, nil)
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if strings.Contains(resp.Header.Get("Location"), loginPath) {
			return apperrors.New(apperrors.ErrCodeUnauthorized, "invalid username or password", nil)
		}
		return nil
	}
	if resp.StatusCode >= 500 {
		return apperrors.Application("server error during sign-in")
	}
	// The form was rendered again: the credentials were rejected.
	return apperrors.New(apperrors.ErrCodeUnauthorized, "invalid username or password", nil)
}

// Logout ends the server-side session. Cookies are cleared locally by
// removing the session file.
func (c *Client) Logout(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, logoutPath, nil, "")
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// Registration is a new account. DateOfBirth is optional, as YYYY-MM-DD.
type Registration struct {
	Username    string
	Email       string
	FullName    string
	DateOfBirth string
	Password    string
}

// Validate checks the fields the sign-up form requires.
func (r Registration) Validate() error {
	switch {
	case strings.TrimSpace(r.Username) == "":
		return apperrors.Validation("username required")
	case strings.TrimSpace(r.FullName) == "":
		return apperrors.Validation("full name required")
	case r.Password == "":
		return apperrors.Validation("password required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return apperrors.Validation(fmt.Sprintf("invalid email: %q", r.Email))
	}
	if r.DateOfBirth != "" {
		if _, err := time.Parse(time.DateOnly, r.DateOfBirth); err != nil {
			return apperrors.Validation(fmt.Sprintf("invalid date of birth %q (want YYYY-MM-DD)", r.DateOfBirth))
		}
	}
	return nil
}

// Register creates an account. The server signs the new user in, so the
// session cookies are kept as after Login. Rejected forms come back as
// {status, errors} where errors is Django's form error JSON.
func (c *Client) Register(ctx context.Context, r Registration) error {
	if err := r.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	tok, err := c.csrfToken(ctx)
	if err != nil {
		return err
	}
	form := url.Values{
		"username":      {strings.TrimSpace(r.Username)},
		"email":         {strings.TrimSpace(r.Email)},
		"full_name":     {strings.TrimSpace(r.FullName)},
		"date_of_birth": {r.DateOfBirth},
		"password1":     {r.Password},
		"password2":     {r.Password},
		csrfField:       {tok},
	}
	req, err := c.newRequest(ctx, http.MethodPost, registerPath, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	req.Header.Set(csrfHeader, tok)

	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return transportError(ctx, err)
	}

	if isJSONResponse(resp) {
		out := gjson.ParseBytes(body)
		if resp.StatusCode < 300 && out.Get("status").Str == "success" {
			return nil
		}
		if msg := formErrors(out.Get("errors")); msg != "" {
			return apperrors.Validation(msg)
		}
		if msg := out.Get("message").Str; msg != "" {
			return apperrors.Validation(msg)
		}
		return apperrors.Validation("registration rejected")
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		if strings.Contains(loc, registerPath) || strings.Contains(loc, loginPath) {
			return apperrors.Validation("registration rejected")
		}
		return nil
	}
	if resp.StatusCode >= 500 {
		return apperrors.Application("server error during registration")
	}
	return apperrors.Validation("registration rejected")
}

// formErrors flattens Django form errors, {"field": [{"message": ...}]},
// into "field: message" pairs in document order. The value may arrive as
// an object or as a string holding the JSON.
func formErrors(v gjson.Result) string {
	if v.Type == gjson.String {
		v = gjson.Parse(v.Str)
	}
	if !v.IsObject() {
		return ""
	}
	var parts []string
	v.ForEach(func(field, messages gjson.Result) bool {
		first := messages.Get("0")
		msg := first.Get("message").Str
		if msg == "" {
			msg = first.String()
		}
		if msg == "" {
			return true
		}
		if field.Str == "__all__" {
			parts = append(parts, msg)
		} else {
			parts = append(parts, field.Str+": "+msg)
		}
		return true
	})
	return strings.Join(parts, "; ")
}
