// Package crawler walks a date range one day at a time and archives each
// day's search results.
//
// For every day in [start, end) the Crawler builds the day's query, fetches
// all result pages through the retry state machine, appends the batch to the
// object log and records the day in the run's checkpoint. Days are processed
// strictly in order on the calling goroutine. When a day cannot be retrieved
// the run stops with a *DayError naming it and later days stay untouched.
//
// Usage:
//
//	c, err := crawler.New(cfg, client, writer,
//	    crawler.WithLogger(log),
//	    crawler.WithCheckpoint(mgr),
//	    crawler.WithResume(true),
//	)
//	if err != nil {
//	    return err
//	}
//	summary, err := c.Run(ctx, start, end)
//
// Resumption:
//
// A checkpoint left by an interrupted run blocks a new run over the same
// query and range unless WithResume or WithForceRestart is given. Resuming
// skips every day the checkpoint lists as written. The checkpoint is deleted
// once the whole range has been written.
package crawler
