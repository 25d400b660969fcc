// Package thanker is the entry point of a thanking run: reachability probe,
// login with the captcha handshake, then the dispatch loop. Every call
// returns an Outcome and never panics on site errors.
package thanker
