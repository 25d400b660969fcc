package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieGuide explains how to copy the session cookies out of a browser
func WriteCookieGuide(w io.Writer, siteURL string) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "SESSION COOKIE GUIDE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "1. Log in to %s in your browser.\n", siteURL)
	fmt.Fprintln(w, "2. Open the developer tools (F12) and find the cookie storage:")
	fmt.Fprintln(w, "     Chrome/Edge/Brave: Application > Storage > Cookies")
	fmt.Fprintln(w, "     Firefox:           Storage > Cookies")
	fmt.Fprintln(w, "3. Copy the values of the cookies named \"a\" and \"b\".")
	fmt.Fprintln(w, "4. Paste them when prompted, or export them as")
	fmt.Fprintln(w, "     FAVTHANKER_USERNAME, FAVTHANKER_COOKIE_A and FAVTHANKER_COOKIE_B.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The cookies grant full access to your account. Do not share them.")
	fmt.Fprintln(w, rule)
}
