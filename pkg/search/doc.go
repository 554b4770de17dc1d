// Package search retrieves the complete result set of one day's query from a
// paginated full-archive search endpoint.
//
// A Client sends one authenticated GET per page and follows meta.next_token
// until the service reports no further pages. Every failure is classified
// into a typed error from tweetcrawler/pkg/errors so a retry wrapper can tell
// transient problems (network, rate limit, server, broken stream) apart from
// fatal ones (authentication, invalid query):
//
//	client, err := search.NewClient(cfg, creds, log)
//	if err != nil {
//	    return err
//	}
//	batch, err := client.Fetch(ctx, builder.Build(day))
//
// Records are passed through untouched, either one per page or one per tweet
// depending on the configured record mode.
package search
