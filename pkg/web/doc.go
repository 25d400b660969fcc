// Package web is the engine's browser: a cookie-holding HTTP client that
// returns pages with their raw source and a goquery DOM for anchor, form and
// image lookups.
//
// Failures are typed with pkg/errors: missing elements and 404s are
// not_found, transport failures and other error statuses are network.
package web
