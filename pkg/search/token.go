package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"tweetcrawler/pkg/auth"
	errs "tweetcrawler/pkg/errors"
)

// TokenSource supplies the bearer token sent with every search request
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a bearer token known up front
type StaticToken string

// Token returns the token itself
func (s StaticToken) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

// AppOnlyToken exchanges a consumer key and secret for an app-only bearer
// token on first use and caches the result.
type AppOnlyToken struct {
	key        string
	secret     string
	tokenURL   string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// NewAppOnlyToken creates a token source for the client_credentials grant
func NewAppOnlyToken(key, secret, tokenURL string, httpClient *http.Client) *AppOnlyToken {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AppOnlyToken{
		key:        key,
		secret:     secret,
		tokenURL:   tokenURL,
		httpClient: httpClient,
	}
}

// NewTokenSource picks the token source for creds: the bearer token when
// present, otherwise an app-only exchange of the consumer key and secret.
func NewTokenSource(creds *auth.Credentials, tokenURL string, httpClient *http.Client) (TokenSource, error) {
	if err := creds.Validate(); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, 0, "no usable credentials", err)
	}
	if creds.BearerToken != "" {
		return StaticToken(creds.BearerToken), nil
	}
	if tokenURL == "" {
		return nil, errs.New(errs.ErrorTypeConfig, 0, "token URL is required to exchange consumer keys")
	}
	return NewAppOnlyToken(creds.ConsumerKey, creds.ConsumerSecret, tokenURL, httpClient), nil
}

type tokenResponse struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
}

// Token returns the cached token, requesting one if needed
func (a *AppOnlyToken) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" {
		return a.token, nil
	}

	token, err := a.exchange(ctx)
	if err != nil {
		return "", err
	}
	a.token = token
	return token, nil
}

// Invalidate drops the cached token so the next call exchanges again
func (a *AppOnlyToken) Invalidate() {
	a.mu.Lock()
	a.token = ""
	a.mu.Unlock()
}

func (a *AppOnlyToken) exchange(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeConfig, 0, "failed to create token request", err)
	}
	req.SetBasicAuth(url.QueryEscape(a.key), url.QueryEscape(a.secret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errs.Wrap(errs.ErrorTypeNetwork, 0, "token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errs.Wrap(errs.ErrorTypeStream, resp.StatusCode, "failed to read token response", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := describe(body)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", errs.New(errs.TypeForStatus(resp.StatusCode), resp.StatusCode, fmt.Sprintf("token exchange failed: %s", msg))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", errs.Wrap(errs.ErrorTypeStream, resp.StatusCode, "failed to parse token response", err)
	}
	if !strings.EqualFold(tr.TokenType, "bearer") || tr.AccessToken == "" {
		return "", errs.New(errs.ErrorTypeAuth, resp.StatusCode, fmt.Sprintf("unexpected token type %q", tr.TokenType))
	}
	return tr.AccessToken, nil
}
