// Package session owns the authenticated browsing context.
//
// A Manager logs in either with a stored cookie pair or with a password. A
// password login that meets the site's captcha suspends and returns a
// Challenge carrying the captcha image; CompleteLogin finishes it once the
// caller has an answer. Successful logins persist the cookie pair through an
// AccountStore so later runs can skip the interactive step.
package session
