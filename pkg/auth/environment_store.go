package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvBearerToken    = "TWEETCRAWLER_BEARER_TOKEN"
	EnvConsumerKey    = "TWEETCRAWLER_CONSUMER_KEY"
	EnvConsumerSecret = "TWEETCRAWLER_CONSUMER_SECRET"
	EnvEndpoint       = "TWEETCRAWLER_ENDPOINT"
)

// EnvironmentStore is a read-only CredentialStore over TWEETCRAWLER_*
// environment variables. It holds at most one account.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(creds *Credentials) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment credentials under the given name, or
// "environment" when name is empty
func (e *EnvironmentStore) Retrieve(name string) (*Credentials, error) {
	creds := &Credentials{
		Name:           name,
		Endpoint:       os.Getenv(EnvEndpoint),
		BearerToken:    os.Getenv(EnvBearerToken),
		ConsumerKey:    os.Getenv(EnvConsumerKey),
		ConsumerSecret: os.Getenv(EnvConsumerSecret),
		LastModified:   time.Now(),
	}
	if creds.Validate() != nil {
		return nil, ErrCredentialsNotFound
	}
	if creds.Name == "" {
		creds.Name = "environment"
	}
	return creds, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Credentials, error) {
	creds, err := e.Retrieve("")
	if err != nil {
		return []*Credentials{}, nil
	}
	return []*Credentials{creds}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
