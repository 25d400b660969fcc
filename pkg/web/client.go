package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	errs "favthanker/pkg/errors"
	"favthanker/pkg/logger"
)

// maxBodySize caps how much of a response is read
const maxBodySize = 8 << 20

// Options configures a Client
type Options struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	// Transport overrides the HTTP transport, mainly for tests
	Transport http.RoundTripper
	Logger    logger.Logger
}

// Client fetches and submits pages while holding the session cookies
type Client struct {
	http      *http.Client
	base      *url.URL
	userAgent string
	limiter   *rate.Limiter
	logger    logger.Logger
}

// NewClient creates a Client with its own cookie jar
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		http: &http.Client{
			Jar:       jar,
			Timeout:   timeout,
			Transport: opts.Transport,
		},
		base:      base,
		userAgent: opts.UserAgent,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    log.WithField("component", "web"),
	}, nil
}

// Resolve turns a site-relative path or absolute URL into an absolute URL
func (c *Client) Resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return c.base.String() + strings.TrimPrefix(ref, "/")
	}
	return c.base.ResolveReference(u).String()
}

// Get fetches a page
func (c *Client) Get(ctx context.Context, ref string) (*Page, error) {
	target := c.Resolve(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "get "+target, err)
	}
	return c.do(req)
}

// GetBytes fetches a raw resource such as an image
func (c *Client) GetBytes(ctx context.Context, ref string) ([]byte, error) {
	target := c.Resolve(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "get "+target, err)
	}
	_, body, err := c.roundTrip(req)
	return body, err
}

// Submit posts form with values and returns the resulting page
func (c *Client) Submit(ctx context.Context, page *Page, form *Form, values url.Values) (*Page, error) {
	action := form.Action
	if action == "" {
		action = page.URL.String()
	}
	target := page.URL.String()
	if u, err := url.Parse(action); err == nil {
		target = page.URL.ResolveReference(u).String()
	}

	encoded := values.Encode()
	var req *http.Request
	var err error
	if strings.EqualFold(form.Method, http.MethodGet) {
		u, perr := url.Parse(target)
		if perr != nil {
			return nil, errs.Wrap(errs.ErrorTypeUnknown, "submit "+target, perr)
		}
		u.RawQuery = encoded
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(encoded))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("Referer", page.URL.String())
		}
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "submit "+target, err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Page, error) {
	final, body, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	page, err := NewPage(final, body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, req.Method+" "+req.URL.String(), err)
	}
	return page, nil
}

// roundTrip sends req through the limiter and classifies failures
func (c *Client) roundTrip(req *http.Request) (*url.URL, []byte, error) {
	op := req.Method + " " + req.URL.String()
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, nil, errs.Wrap(errs.ErrorTypeCanceled, op, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, nil, errs.Wrap(errs.ErrorTypeCanceled, op, err)
		}
		return nil, nil, errs.Wrap(errs.ErrorTypeNetwork, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrorTypeNetwork, op, fmt.Errorf("failed to read body: %w", err))
	}

	c.logger.DebugWithFields("request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"bytes":    len(body),
		"duration": time.Since(start),
	})

	switch {
	case resp.StatusCode < 400:
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil, errs.New(errs.ErrorTypeNotFound, op, resp.Status)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, nil, errs.New(errs.ErrorTypeRateLimit, op, resp.Status)
	case errs.IsRetryableStatusCode(resp.StatusCode):
		return nil, nil, errs.New(errs.ErrorTypeNetwork, op, fmt.Sprintf("%s: %s", resp.Status, snippet(body)))
	default:
		return nil, nil, errs.New(errs.ErrorTypeUnknown, op, fmt.Sprintf("%s: %s", resp.Status, snippet(body)))
	}
	return resp.Request.URL, body, nil
}

// SetCookies installs session cookies for the site root
func (c *Client) SetCookies(cookies map[string]string) {
	list := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		list = append(list, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	c.http.Jar.SetCookies(c.base, list)
}

// Cookie returns the value of a cookie the site has set, or "" if absent
func (c *Client) Cookie(name string) string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func snippet(body []byte) string {
	b := bytes.TrimSpace(body)
	if len(b) > 120 {
		b = b[:120]
	}
	return string(b)
}
