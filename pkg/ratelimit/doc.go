// Package ratelimit paces requests to the search API.
//
// SlidingWindow caps the number of requests per window (the API counts
// requests per fifteen minutes) and can be paused until the server's reset
// time after a 429. Pacer keeps a minimum gap between consecutive page
// requests. Multi combines them:
//
//	limiter := ratelimit.Multi{
//	    ratelimit.NewSlidingWindow(300, 15*time.Minute),
//	    ratelimit.NewPacer(time.Second),
//	}
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//
// Every Wait returns early with ctx.Err() when the context is cancelled.
package ratelimit
