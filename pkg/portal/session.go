package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/noah-isme/room-booker/pkg/htmldoc"
)

const (
	sessionCookieName = "JSESSIONID"
	loginMarker       = "Log in"
)

// session is one authenticated portal identity. mu guards every field.
type session struct {
	name     string
	loginURL string

	mu               sync.Mutex
	http             *http.Client
	sessionID        string
	validatedAt      time.Time
	participantAdded bool
}

func newSession(name, loginURL string) *session {
	return &session{name: name, loginURL: loginURL}
}

// ensureSession revalidates at most once per interval and logs in again when the
// portal no longer recognises the session. Callers hold s.mu.
func (c *Client) ensureSession(ctx context.Context, s *session) error {
	now := c.now()
	if s.sessionID != "" && now.Sub(s.validatedAt) < c.cfg.RevalidateInterval {
		return nil
	}

	if s.sessionID != "" {
		valid, err := c.validate(ctx, s)
		if err == nil && valid {
			s.validatedAt = now
			return nil
		}
		if err != nil {
			c.logger.Warn("portal session validation failed", zap.String("session", s.name), zap.Error(err))
		}
	}

	return c.login(ctx, s)
}

func (c *Client) validate(ctx context.Context, s *session) (bool, error) {
	resp, err := c.get(ctx, s.http, "validate_session", c.cfg.BaseURL+schedulePath)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	return !strings.Contains(string(body), loginMarker), nil
}

// login walks the SSO chain: portal index, identity provider login form, then the
// auto-submitted assertion form that lands back on the portal with a session cookie.
func (c *Client) login(ctx context.Context, s *session) error {
	if s.loginURL == "" {
		return fmt.Errorf("%w: no login URL for %s session", ErrLoginFailed, s.name)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	httpClient := &http.Client{Jar: jar, Timeout: c.cfg.Timeout}

	resp, err := c.get(ctx, httpClient, "login_index", c.cfg.BaseURL+indexPath)
	if err != nil {
		return err
	}
	drain(resp)

	resp, err = c.get(ctx, httpClient, "login_form", s.loginURL)
	if err != nil {
		return err
	}
	form, formURL, err := readForm(resp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	fields := formFields(form, true)
	fields.Set("j_username", c.cfg.Username)
	fields.Set("j_password", c.cfg.Password)
	fields.Set("_eventId_proceed", "")
	fields.Del("_eventId_authn/SPNEGO")

	resp, err = c.postForm(ctx, httpClient, "login_credentials", formAction(formURL, form), fields)
	if err != nil {
		return err
	}
	assertion, assertionURL, err := readForm(resp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	resp, err = c.postForm(ctx, httpClient, "login_assertion", formAction(assertionURL, assertion), formFields(assertion, false))
	if err != nil {
		return err
	}
	drain(resp)

	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return err
	}
	var sessionID string
	for _, cookie := range jar.Cookies(base) {
		if cookie.Name == sessionCookieName {
			sessionID = cookie.Value
		}
	}
	if sessionID == "" {
		return fmt.Errorf("%w: no %s cookie after sign in", ErrLoginFailed, sessionCookieName)
	}

	s.http = httpClient
	s.sessionID = sessionID
	s.validatedAt = c.now()
	s.participantAdded = false
	c.logger.Info("portal session established", zap.String("session", s.name))
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func readForm(resp *http.Response) (*html.Node, *url.URL, error) {
	defer resp.Body.Close()
	doc, err := htmldoc.Parse(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	form := htmldoc.Find(doc, htmldoc.Element(atom.Form))
	if form == nil {
		return nil, nil, fmt.Errorf("no form at %s", resp.Request.URL.Redacted())
	}
	return form, resp.Request.URL, nil
}

// formFields collects named inputs; keepEmpty controls whether inputs without a value are sent.
func formFields(form *html.Node, keepEmpty bool) url.Values {
	values := url.Values{}
	for _, input := range htmldoc.FindAll(form, htmldoc.Element(atom.Input)) {
		name, ok := htmldoc.Attr(input, "name")
		if !ok || name == "" {
			continue
		}
		value, _ := htmldoc.Attr(input, "value")
		if value == "" && !keepEmpty {
			continue
		}
		values.Set(name, value)
	}
	return values
}

// formAction resolves the form target against the page URL. Forms without an action
// post back to the page itself minus any ;jsessionid path parameter.
func formAction(page *url.URL, form *html.Node) string {
	action, _ := htmldoc.Attr(form, "action")
	if strings.TrimSpace(action) == "" {
		target := *page
		if idx := strings.Index(target.Path, ";"); idx >= 0 {
			target.Path = target.Path[:idx]
			target.RawPath = ""
		}
		return target.String()
	}
	ref, err := url.Parse(strings.TrimSpace(action))
	if err != nil {
		return page.String()
	}
	return page.ResolveReference(ref).String()
}
