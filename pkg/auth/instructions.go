package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCredentialGuide prints instructions for obtaining search API credentials
func WriteCredentialGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "SEARCH API CREDENTIALS")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The crawler calls the full-archive search endpoint with app-only")
	fmt.Fprintln(w, "authentication. You need either a bearer token or the consumer key")
	fmt.Fprintln(w, "and secret of a project app with academic or full-archive access.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Open the developer portal and select your project app.")
	fmt.Fprintln(w, "STEP 2: Under 'Keys and tokens', copy the Bearer Token, or the")
	fmt.Fprintln(w, "        API Key and API Key Secret.")
	fmt.Fprintln(w, "STEP 3: Provide them in one of these ways:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  a) tweetcrawler auth login --account research")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  b) a key file (default .twitter_keys.yaml):")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "       search_tweets_v2:")
	fmt.Fprintln(w, "         endpoint: https://api.twitter.com/2/tweets/search/all")
	fmt.Fprintln(w, "         bearer_token: <BEARER TOKEN>")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  c) environment variables %s, or %s and %s\n",
		EnvBearerToken, EnvConsumerKey, EnvConsumerSecret)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "When only a key and secret are given, the crawler exchanges them for")
	fmt.Fprintln(w, "a bearer token once at startup.")
	fmt.Fprintln(w, rule)
}
