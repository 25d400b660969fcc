package session

import (
	"context"
	"net/url"
	"strings"
	"time"

	"favthanker/pkg/auth"
	errs "favthanker/pkg/errors"
	"favthanker/pkg/logger"
	"favthanker/pkg/retry"
	"favthanker/pkg/site"
	"favthanker/pkg/web"
)

// AccountStore persists a successful login
type AccountStore interface {
	Store(account *auth.Account) error
}

// Credentials is either a username and password or a username and a stored cookie pair
type Credentials struct {
	Username string
	Password string
	CookieA  string
	CookieB  string
}

func (c Credentials) hasCookies() bool {
	return c.CookieA != "" && c.CookieB != ""
}

// Session is an authenticated browsing context
type Session struct {
	username string
	client   *web.Client
}

// Username is the operator the session is logged in as
func (s *Session) Username() string {
	return s.username
}

// Fetch loads a page and fails with auth_expired if the site no longer sees us as logged in
func (s *Session) Fetch(ctx context.Context, ref string) (*web.Page, error) {
	page, err := s.client.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return checkAuthenticated("fetch "+ref, page)
}

// Submit posts a form with the same authentication check as Fetch
func (s *Session) Submit(ctx context.Context, page *web.Page, form *web.Form, values url.Values) (*web.Page, error) {
	result, err := s.client.Submit(ctx, page, form, values)
	if err != nil {
		return nil, err
	}
	return checkAuthenticated("submit "+page.URL.Path, result)
}

func checkAuthenticated(op string, page *web.Page) (*web.Page, error) {
	if !page.Has(site.LoggedInSelector) {
		return nil, errs.New(errs.ErrorTypeAuthExpired, op, "page is not authenticated")
	}
	return page, nil
}

// Challenge is a suspended password login waiting for a captcha answer.
// It holds the captcha login page so the answer is submitted against it.
type Challenge struct {
	Username string
	Image    []byte
	page     *web.Page
}

// LoginResult is either an authenticated Session or a captcha Challenge
type LoginResult struct {
	Session   *Session
	Challenge *Challenge
}

// Manager performs logins over a single web client
type Manager struct {
	client        *web.Client
	store         AccountStore
	probeAttempts int
	probeDelay    time.Duration
	logger        logger.Logger
}

// Option customises a Manager
type Option func(*Manager)

// WithProbe sets how often and how far apart the reachability probe is tried
func WithProbe(attempts int, delay time.Duration) Option {
	return func(m *Manager) {
		m.probeAttempts = attempts
		m.probeDelay = delay
	}
}

// WithLogger sets the manager's logger
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a session manager; store may be nil to skip persistence
func NewManager(client *web.Client, store AccountStore, opts ...Option) *Manager {
	m := &Manager{
		client:        client,
		store:         store,
		probeAttempts: 2,
		probeDelay:    2 * time.Second,
		logger:        logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithField("component", "session")
	return m
}

// Login authenticates with a cookie pair when given one, otherwise with the
// password. A password login that meets a captcha returns a Challenge.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	if creds.Username == "" {
		return nil, errs.New(errs.ErrorTypeLoginFailed, "login", "username is required")
	}
	if creds.hasCookies() {
		s, err := m.Resume(ctx, creds.Username, creds.CookieA, creds.CookieB)
		if err != nil {
			return nil, err
		}
		return &LoginResult{Session: s}, nil
	}
	if creds.Password == "" {
		return nil, errs.New(errs.ErrorTypeLoginFailed, "login", "password or cookies are required")
	}

	loginPage, err := m.client.Get(ctx, site.LoginPath)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeLoginFailed, "login", err)
	}

	if _, err := loginPage.AnchorByHref(site.CaptchaHref); err == nil {
		ch, err := m.fetchChallenge(ctx, creds.Username)
		if err != nil {
			return nil, err
		}
		m.logger.InfoWithFields("captcha required", map[string]interface{}{"username": creds.Username})
		return &LoginResult{Challenge: ch}, nil
	}

	s, err := m.submitLogin(ctx, loginPage, creds.Username, creds.Password, "")
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: s}, nil
}

// fetchChallenge follows the captcha link and downloads the captcha image
func (m *Manager) fetchChallenge(ctx context.Context, username string) (*Challenge, error) {
	page, err := m.client.Get(ctx, site.CaptchaHref)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeLoginFailed, "captcha page", err)
	}
	src, err := page.ImageSrcByID(site.CaptchaImageID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeLoginFailed, "captcha image", err)
	}
	img, err := m.client.GetBytes(ctx, src)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeLoginFailed, "captcha image", err)
	}
	return &Challenge{Username: username, Image: img, page: page}, nil
}

// CompleteLogin answers a captcha challenge
func (m *Manager) CompleteLogin(ctx context.Context, ch *Challenge, password, answer string) (*Session, error) {
	if ch == nil || ch.page == nil {
		return nil, errs.New(errs.ErrorTypeLoginFailed, "login", "no pending captcha challenge")
	}
	if strings.TrimSpace(answer) == "" {
		return nil, errs.New(errs.ErrorTypeLoginFailed, "login", "captcha answer is required")
	}
	return m.submitLogin(ctx, ch.page, ch.Username, password, answer)
}

func (m *Manager) submitLogin(ctx context.Context, page *web.Page, username, password, answer string) (*Session, error) {
	form, err := page.FormWithField(site.LoginUserField)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeLoginFailed, "login form", err)
	}

	overrides := map[string]string{
		site.LoginUserField: username,
		site.LoginPassField: password,
	}
	if answer != "" {
		overrides[site.LoginCaptchaField] = strings.TrimSpace(answer)
	}

	result, err := m.client.Submit(ctx, page, form, form.Values(overrides, "", ""))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeLoginFailed, "login", err)
	}
	if !result.Has(site.LoggedInSelector) {
		return nil, errs.New(errs.ErrorTypeLoginFailed, "login", "credentials or captcha rejected")
	}
	return m.established(username)
}

// Resume re-authenticates with a persisted cookie pair
func (m *Manager) Resume(ctx context.Context, username, cookieA, cookieB string) (*Session, error) {
	m.client.SetCookies(map[string]string{site.CookieA: cookieA, site.CookieB: cookieB})

	page, err := m.client.Get(ctx, "")
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeLoginFailed, "resume", err)
	}
	if !page.Has(site.LoggedInSelector) {
		return nil, errs.New(errs.ErrorTypeLoginFailed, "resume", "stored cookies are no longer valid")
	}
	return m.established(username)
}

func (m *Manager) established(username string) (*Session, error) {
	s := &Session{username: username, client: m.client}

	if m.store != nil {
		account := &auth.Account{
			Username: username,
			CookieA:  m.client.Cookie(site.CookieA),
			CookieB:  m.client.Cookie(site.CookieB),
		}
		if err := m.store.Store(account); err != nil {
			m.logger.WithError(err).Warn("could not persist session cookies")
		}
	}

	m.logger.InfoWithFields("logged in", map[string]interface{}{"username": username})
	return s, nil
}

// VerifyOnline probes the site root without authentication. It never returns an error.
func (m *Manager) VerifyOnline(ctx context.Context) bool {
	err := retry.Do(ctx, func() error {
		_, err := m.client.GetBytes(ctx, "")
		return err
	}, &retry.Config{
		MaxAttempts: m.probeAttempts,
		Backoff:     &retry.ConstantBackoff{Delay: m.probeDelay},
		RetryIf: func(err error) bool {
			return errs.Is(err, errs.ErrorTypeNetwork) || errs.Is(err, errs.ErrorTypeRateLimit)
		},
		Logger: m.logger,
	})
	if err != nil {
		m.logger.WithError(err).Warn("site is not reachable")
		return false
	}
	return true
}
