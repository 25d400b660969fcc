// Package site is the structural contract with the target site: every URL,
// markup pattern, form field and cookie name the engine relies on lives here.
// When the site changes its markup, this is the package to update.
package site

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Paths relative to the configured base URL
const (
	NotificationsPath = "msg/others/#favorites"
	LoginPath         = "login/"
	userPathFormat    = "user/%s/"
)

// Hrefs matched verbatim against anchors
const (
	PendingCountHref = "/msg/others/#favorites"
	CaptchaHref      = "/login/?mode=imagecaptcha"
)

// Notification page clear form
const (
	ClearFormIndex     = 1
	FavoriteCheckbox   = "favorites[]"
	RemoveFavoritesBtn = "remove-favorites"
)

// Recipient page shout form; it is the last form on the page
const (
	ShoutFormIndex = -1
	ShoutField     = "shout"
	ShoutSubmitBtn = "submit"
	// MinProfileForms is the form count below which a profile is treated as disabled
	MinProfileForms = 2
)

// Login form
const (
	LoginUserField    = "name"
	LoginPassField    = "pass"
	LoginCaptchaField = "captcha"
	CaptchaImageID    = "captcha_img"
)

// Session cookie names
const (
	CookieA = "a"
	CookieB = "b"
)

// LoggedInSelector matches markup that only an authenticated page carries
const LoggedInSelector = `a[href^="/logout"], form[action^="/logout"]`

var (
	// favoriteRow captures one "X favorited Y" notification row
	favoriteRow = regexp.MustCompile(
		`(?s)<a href="(?P<userlink>/user/[^/"]+/)"[^>]*>\s*(?:<[^>]+>\s*)*(?P<user>[^<]+?)\s*(?:</[^>]+>\s*)*</a>\s*favorited\s*` +
			`<a href="(?P<artlink>/view/\d+/)"[^>]*>\s*"?\s*(?:<[^>]+>\s*)*"?(?P<title>[^<"]+?)"?\s*(?:</[^>]+>\s*)*"?\s*</a>`)

	// commentAuthor captures the author of one shout or comment
	commentAuthor = regexp.MustCompile(
		`<a href="/user/(?P<author>[^/"]+)/"[^>]*class="[^"]*(?:comment_username|shout-username)[^"]*"`)

	// rateLimitNotice matches the site's too-many-shouts warning
	rateLimitNotice = regexp.MustCompile(`(?i)(?:too many shouts|\d+ shouts (?:with)?in (?:the (?:last|past) )?\d+ minutes)`)

	// pendingCountText matches the count anchor text such as "12F"
	pendingCountText = regexp.MustCompile(`^\s*(\d+)\s*[A-Za-z]?\s*$`)
)

// FavoriteRow is one raw notification match with site-relative links
type FavoriteRow struct {
	User     string
	UserLink string
	Title    string
	ArtLink  string
}

// FavoriteRows returns every notification row in body, in page order
func FavoriteRows(body string) []FavoriteRow {
	matches := favoriteRow.FindAllStringSubmatch(body, -1)
	rows := make([]FavoriteRow, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, FavoriteRow{
			UserLink: m[favoriteRow.SubexpIndex("userlink")],
			User:     strings.TrimSpace(m[favoriteRow.SubexpIndex("user")]),
			ArtLink:  m[favoriteRow.SubexpIndex("artlink")],
			Title:    strings.TrimSpace(m[favoriteRow.SubexpIndex("title")]),
		})
	}
	return rows
}

// CommentAuthors returns the canonical names of every comment author in body
func CommentAuthors(body string) []string {
	idx := commentAuthor.SubexpIndex("author")
	matches := commentAuthor.FindAllStringSubmatch(body, -1)
	authors := make([]string, 0, len(matches))
	for _, m := range matches {
		authors = append(authors, Canonical(m[idx]))
	}
	return authors
}

// HasCommentFrom reports whether any comment in body was authored by one of names
func HasCommentFrom(body string, names ...string) bool {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[Canonical(n)] = true
	}
	for _, a := range CommentAuthors(body) {
		if want[a] {
			return true
		}
	}
	return false
}

// IsRateLimited reports whether body carries the too-many-shouts notice
func IsRateLimited(body string) bool {
	return rateLimitNotice.MatchString(body)
}

// ParsePendingCount extracts the number from a count anchor text such as "12F"
func ParsePendingCount(text string) (int, bool) {
	m := pendingCountText.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Canonical is the form of a username the site uses in profile URLs
func Canonical(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", ""))
}

// ProfilePath returns the site-relative profile path for a username
func ProfilePath(name string) string {
	return fmt.Sprintf(userPathFormat, strings.ReplaceAll(name, "_", ""))
}
