package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// KeyFileStore implements CredentialStore over a plain YAML key file where
// each top-level key names one account:
//
//	search_tweets_v2:
//	  endpoint: https://api.twitter.com/2/tweets/search/all
//	  bearer_token: AAAA...
//	  consumer_key: xvz1evFS4wEEPTGEFPHBog
//	  consumer_secret: L8qq9PZyRg6ieKGEKhZolGC0vJWLw8iEJ88DRdyOg
type KeyFileStore struct {
	path string
	mu   sync.RWMutex
}

// NewKeyFileStore creates a store over the YAML file at path. The file does
// not need to exist yet.
func NewKeyFileStore(path string) *KeyFileStore {
	return &KeyFileStore{path: path}
}

// Path returns the key file location
func (k *KeyFileStore) Path() string {
	return k.path
}

func (k *KeyFileStore) load() (map[string]*Credentials, error) {
	data, err := os.ReadFile(k.path)
	if err != nil {
		return nil, err
	}

	accounts := make(map[string]*Credentials)
	if err := yaml.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse key file %s: %w", k.path, err)
	}
	for name, creds := range accounts {
		if creds == nil {
			delete(accounts, name)
			continue
		}
		creds.Name = name
	}
	return accounts, nil
}

func (k *KeyFileStore) save(accounts map[string]*Credentials) error {
	data, err := yaml.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal key file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(k.path), 0700); err != nil {
		return fmt.Errorf("failed to create key file directory: %w", err)
	}

	tempFile := k.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return os.Rename(tempFile, k.path)
}

// Store adds or replaces the account in the key file
func (k *KeyFileStore) Store(creds *Credentials) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if creds == nil || creds.Name == "" {
		return ErrInvalidCredentials
	}

	accounts, err := k.load()
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		accounts = make(map[string]*Credentials)
	}

	c := *creds
	accounts[creds.Name] = &c
	return k.save(accounts)
}

// Retrieve reads the named account from the key file
func (k *KeyFileStore) Retrieve(name string) (*Credentials, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if name == "" {
		return nil, ErrInvalidCredentials
	}

	accounts, err := k.load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCredentialsNotFound
		}
		return nil, err
	}

	creds, ok := accounts[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return creds, nil
}

// List returns every account in the key file
func (k *KeyFileStore) List() ([]*Credentials, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	accounts, err := k.load()
	if err != nil {
		if os.IsNotExist(err) {
			return []*Credentials{}, nil
		}
		return nil, err
	}

	result := make([]*Credentials, 0, len(accounts))
	for _, creds := range accounts {
		result = append(result, creds)
	}
	return result, nil
}

// Delete removes the named account from the key file
func (k *KeyFileStore) Delete(name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	accounts, err := k.load()
	if err != nil {
		if os.IsNotExist(err) {
			return ErrCredentialsNotFound
		}
		return err
	}

	if _, ok := accounts[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(accounts, name)
	return k.save(accounts)
}

// Exists checks if the named account is in the key file
func (k *KeyFileStore) Exists(name string) bool {
	_, err := k.Retrieve(name)
	return err == nil
}
