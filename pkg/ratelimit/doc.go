// Package ratelimit paces shout submissions.
//
// The Controller applies a fixed delay before every attempt, a delay after
// every verified shout, and a stepped cooldown once the site reports too many
// shouts. A SlidingWindow of verified shouts feeds cooldown heartbeats and,
// when enabled, a proactive cooldown before the site has to complain.
package ratelimit
