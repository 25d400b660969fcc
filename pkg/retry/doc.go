// Package retry provides context-aware waits and bounded retry loops.
//
// Wait is the single suspension primitive used by the dispatch loop and the
// cooldown controller: it returns early with the context error once a stop is
// requested.
//
//	err := retry.Do(ctx, func() error {
//		return probe(ctx)
//	}, &retry.Config{
//		MaxAttempts: 2,
//		Backoff:     &retry.ConstantBackoff{Delay: time.Second},
//	})
package retry
