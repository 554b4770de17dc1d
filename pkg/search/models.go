package search

import (
	"encoding/json"
	"strings"
)

// Page is one response document of the search endpoint. Data elements and
// includes are kept raw so records reach the object log untouched.
type Page struct {
	Data     []json.RawMessage `json:"data"`
	Includes json.RawMessage   `json:"includes,omitempty"`
	Meta     *Meta             `json:"meta"`
	Errors   []APIError        `json:"errors,omitempty"`
}

// Meta carries the pagination state of a page
type Meta struct {
	NewestID    string `json:"newest_id,omitempty"`
	OldestID    string `json:"oldest_id,omitempty"`
	ResultCount int    `json:"result_count"`
	NextToken   string `json:"next_token,omitempty"`
}

// APIError is the problem document returned on failed requests, or listed
// under "errors" for partial failures
type APIError struct {
	Title   string `json:"title,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Type    string `json:"type,omitempty"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// String returns the most descriptive text the error carries
func (e APIError) String() string {
	switch {
	case e.Title != "" && e.Detail != "":
		return e.Title + ": " + e.Detail
	case e.Detail != "":
		return e.Detail
	case e.Title != "":
		return e.Title
	default:
		return e.Message
	}
}

// errorBody is the top-level shape of a failed response
type errorBody struct {
	APIError
	Errors []APIError `json:"errors"`
}

// describe extracts a readable message from an error response body, or ""
func describe(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}

	parts := make([]string, 0, len(eb.Errors)+1)
	if s := eb.APIError.String(); s != "" {
		parts = append(parts, s)
	}
	for _, e := range eb.Errors {
		if s := e.String(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}

// Batch is the complete result of one day's query, in arrival order
type Batch struct {
	Day     string
	Records []json.RawMessage
	// Pages is the number of pages requested
	Pages int
	// Tweets is the number of tweets contained in Records
	Tweets int
}

// Len returns the number of records
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}
