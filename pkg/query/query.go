// Package query turns the static search configuration and a calendar day
// into the parameters of one day's search request.
package query

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"tweetcrawler/pkg/config"
	"tweetcrawler/pkg/daterange"
)

// Spec is the fully resolved request for one day. It is a value type and is
// never modified after Build returns it.
type Spec struct {
	Query          string
	StartTime      time.Time
	EndTime        time.Time
	ResultsPerCall int
	// MaxResults caps the number of tweets collected for the day (0 = no cap)
	MaxResults int
	// MaxPages caps the number of pages requested for the day (0 = no cap)
	MaxPages    int
	TweetFields []string
	UserFields  []string
	Expansions  []string
}

// Day returns the calendar day the spec covers
func (s Spec) Day() string {
	return daterange.Format(s.StartTime)
}

// Params renders the request parameters. nextToken is omitted when empty.
func (s Spec) Params(nextToken string) url.Values {
	v := url.Values{}
	v.Set("query", s.Query)
	v.Set("start_time", s.StartTime.UTC().Format(time.RFC3339))
	v.Set("end_time", s.EndTime.UTC().Format(time.RFC3339))
	if s.ResultsPerCall > 0 {
		v.Set("max_results", strconv.Itoa(s.ResultsPerCall))
	}
	if len(s.TweetFields) > 0 {
		v.Set("tweet.fields", strings.Join(s.TweetFields, ","))
	}
	if len(s.UserFields) > 0 {
		v.Set("user.fields", strings.Join(s.UserFields, ","))
	}
	if len(s.Expansions) > 0 {
		v.Set("expansions", strings.Join(s.Expansions, ","))
	}
	if nextToken != "" {
		v.Set("next_token", nextToken)
	}
	return v
}

// Builder holds the parts of a Spec that are the same for every day
type Builder struct {
	Query          string
	ResultsPerCall int
	MaxResults     int
	MaxPages       int
	TweetFields    []string
	UserFields     []string
	Expansions     []string
}

// NewBuilder creates a Builder from the search configuration, falling back
// to the default field sets when none are configured.
func NewBuilder(cfg config.SearchConfig) *Builder {
	b := &Builder{
		Query:          cfg.Query,
		ResultsPerCall: cfg.ResultsPerCall,
		MaxResults:     cfg.MaxTweets,
		MaxPages:       cfg.MaxPages,
		TweetFields:    cfg.TweetFields,
		UserFields:     cfg.UserFields,
		Expansions:     cfg.Expansions,
	}
	if len(b.TweetFields) == 0 {
		b.TweetFields = config.DefaultTweetFields
	}
	if len(b.UserFields) == 0 {
		b.UserFields = config.DefaultUserFields
	}
	if len(b.Expansions) == 0 {
		b.Expansions = config.DefaultExpansions
	}
	return b
}

// Build returns the spec covering [day, day+24h)
func (b *Builder) Build(day time.Time) Spec {
	start := daterange.Truncate(day)
	return Spec{
		Query:          b.Query,
		StartTime:      start,
		EndTime:        start.Add(daterange.Day),
		ResultsPerCall: b.ResultsPerCall,
		MaxResults:     b.MaxResults,
		MaxPages:       b.MaxPages,
		TweetFields:    clone(b.TweetFields),
		UserFields:     clone(b.UserFields),
		Expansions:     clone(b.Expansions),
	}
}

func clone(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
