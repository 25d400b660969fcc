package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "favthanker/pkg/errors"
	"favthanker/pkg/logger"
)

const formPage = `<html><body>
<a href="/msg/others/#favorites">4F</a>
<img id="captcha_img" src="/captcha.jpg"/>
<form action="/search/" method="get"><input name="q"/></form>
<form action="/msg/others/" method="post">
  <input type="hidden" name="token" value="abc"/>
  <input type="checkbox" name="favorites[]" value="1"/>
  <input type="checkbox" name="favorites[]" value="2"/>
  <input type="checkbox" name="other" value="x"/>
  <button type="submit" name="remove-favorites" value="Remove">Remove</button>
  <button type="submit" name="remove-all" value="All">All</button>
</form>
<form action="/user/alice/" method="post">
  <textarea name="shout"></textarea>
  <button type="submit" name="submit" value="Submit">Shout</button>
</form>
</body></html>`

func newTestClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{BaseURL: srv.URL, UserAgent: "favthanker-test", Logger: logger.NewNopLogger()})
	require.NoError(t, err)
	return c, srv
}

func TestPageQueries(t *testing.T) {
	u, _ := url.Parse("https://example.com/msg/others/")
	page, err := NewPage(u, []byte(formPage))
	require.NoError(t, err)

	a, err := page.AnchorByHref("/msg/others/#favorites")
	require.NoError(t, err)
	assert.Equal(t, "4F", a.Text)

	_, err = page.AnchorByHref("/nowhere")
	assert.True(t, errs.Is(err, errs.ErrorTypeNotFound))

	src, err := page.ImageSrcByID("captcha_img")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/captcha.jpg", src)

	assert.Len(t, page.Forms(), 3)

	last, err := page.FormByIndex(-1)
	require.NoError(t, err)
	assert.True(t, last.HasField("shout"))

	_, err = page.FormByIndex(5)
	assert.True(t, errs.Is(err, errs.ErrorTypeNotFound))

	f, err := page.FormWithField("q")
	require.NoError(t, err)
	assert.Equal(t, "GET", f.Method)
}

func TestFormValues(t *testing.T) {
	u, _ := url.Parse("https://example.com/msg/others/")
	page, err := NewPage(u, []byte(formPage))
	require.NoError(t, err)

	clear, err := page.FormByIndex(1)
	require.NoError(t, err)
	assert.Equal(t, 2, clear.Count("favorites[]"))

	v := clear.Values(nil, "favorites[]", "remove-favorites")
	assert.Equal(t, []string{"1", "2"}, v["favorites[]"])
	assert.Equal(t, "abc", v.Get("token"))
	assert.Equal(t, "Remove", v.Get("remove-favorites"))
	assert.Empty(t, v.Get("remove-all"))
	assert.Empty(t, v.Get("other"))

	shout, _ := page.FormByIndex(-1)
	sv := shout.Values(map[string]string{"shout": "Thanks!"}, "", "submit")
	assert.Equal(t, "Thanks!", sv.Get("shout"))
	assert.Equal(t, "Submit", sv.Get("submit"))
}

func TestClientGetAndSubmit(t *testing.T) {
	var posted url.Values
	mux := http.NewServeMux()
	mux.HandleFunc("/msg/others/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "favthanker-test", r.Header.Get("User-Agent"))
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			posted, _ = url.ParseQuery(string(body))
			_, _ = io.WriteString(w, "<html><body>cleared</body></html>")
			return
		}
		_, _ = io.WriteString(w, formPage)
	})
	c, _ := newTestClient(t, mux)

	page, err := c.Get(context.Background(), "msg/others/")
	require.NoError(t, err)

	form, err := page.FormByIndex(1)
	require.NoError(t, err)
	result, err := c.Submit(context.Background(), page, form, form.Values(nil, "favorites[]", "remove-favorites"))
	require.NoError(t, err)

	assert.Contains(t, result.Body(), "cleared")
	assert.Equal(t, []string{"1", "2"}, posted["favorites[]"])
}

func TestClientErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/broken/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})
	mux.HandleFunc("/busy/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})
	mux.HandleFunc("/forbidden/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusForbidden)
	})
	c, srv := newTestClient(t, mux)

	_, err := c.Get(context.Background(), "missing/")
	assert.True(t, errs.Is(err, errs.ErrorTypeNotFound))

	_, err = c.Get(context.Background(), "broken/")
	assert.True(t, errs.Is(err, errs.ErrorTypeNetwork))

	_, err = c.Get(context.Background(), "busy/")
	assert.True(t, errs.Is(err, errs.ErrorTypeRateLimit))

	_, err = c.Get(context.Background(), "forbidden/")
	assert.True(t, errs.Is(err, errs.ErrorTypeUnknown))
	assert.False(t, errs.Is(err, errs.ErrorTypeNetwork))

	srv.Close()
	_, err = c.Get(context.Background(), "anything/")
	assert.True(t, errs.Is(err, errs.ErrorTypeNetwork))
}

func TestClientCookies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "a", Value: "cookie-a", Path: "/"})
		_, _ = io.WriteString(w, "<html></html>")
	})
	mux.HandleFunc("/echo/", func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("b")
		if err == nil {
			_, _ = io.WriteString(w, "<p id=\"b\">"+ck.Value+"</p>")
		}
	})
	c, _ := newTestClient(t, mux)

	_, err := c.Get(context.Background(), "login/")
	require.NoError(t, err)
	assert.Equal(t, "cookie-a", c.Cookie("a"))

	c.SetCookies(map[string]string{"b": "cookie-b"})
	page, err := c.Get(context.Background(), "echo/")
	require.NoError(t, err)
	el, err := page.ElementByID("b")
	require.NoError(t, err)
	assert.Equal(t, "cookie-b", el.Text())
}

func TestGetCanceled(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, "x/")
	assert.True(t, errs.Is(err, errs.ErrorTypeCanceled))
}
