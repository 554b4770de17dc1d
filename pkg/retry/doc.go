// Package retry re-runs an operation until it succeeds, fails with a
// non-retryable error or runs out of attempts.
//
// Each run is a small state machine. It starts in Attempting, loops back to
// Attempting after every retryable failure that leaves attempts over, and
// ends in Succeeded, Exhausted or Aborted. OnTransition observes every edge.
//
// Only the transient error kinds of pkg/errors are retried: network, rate
// limit, server error and stream errors. Anything else aborts at once.
//
// The crawler builds its policy from the retry section of the config:
//
//	cfg := retry.FromConfig(appCfg.Retry, log)
//	cfg.Context = ctx
//	batch, err := retry.DoWithResult(func() (*search.Batch, error) {
//		return client.Fetch(ctx, spec)
//	}, cfg)
//	if retry.IsExhausted(err) {
//		// every attempt failed; err wraps the last error
//	}
//
// FromConfig waits the same delay between all attempts. Rate-limit errors
// can use a linear or exponential strategy instead and always honor the reset time
// the server advertised, capped by MaxWait.
package retry
