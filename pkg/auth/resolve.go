package auth

import (
	"errors"
	"fmt"

	"tweetcrawler/pkg/config"
)

// Resolve picks the credentials for a crawl. Sources are tried in order:
//
//  1. a bearer token or consumer key/secret set directly in the config
//     (config file, TWEETCRAWLER_* variables or .env)
//  2. the account named by cfg.Account in the manager's stores
//  3. the cfg.KeysKey entry of the YAML key file at cfg.KeysFile
//  4. the manager's default account
//
// m may be nil, in which case only the config and the key file are used.
func Resolve(cfg config.CredentialsConfig, m *Manager) (*Credentials, error) {
	inline := &Credentials{
		Name:           "config",
		BearerToken:    cfg.BearerToken,
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
	}
	if inline.Validate() == nil {
		return inline, nil
	}

	if cfg.Account != "" {
		if m == nil {
			return nil, fmt.Errorf("%w: account %q requested but no credential store is available", ErrCredentialsNotFound, cfg.Account)
		}
		creds, err := m.Retrieve(cfg.Account)
		if err != nil {
			return nil, err
		}
		return creds, creds.Validate()
	}

	if cfg.KeysFile != "" && cfg.KeysKey != "" {
		creds, err := NewKeyFileStore(cfg.KeysFile).Retrieve(cfg.KeysKey)
		switch {
		case err == nil:
			if verr := creds.Validate(); verr != nil {
				return nil, fmt.Errorf("key file %s entry %q: %w", cfg.KeysFile, cfg.KeysKey, verr)
			}
			return creds, nil
		case !errors.Is(err, ErrCredentialsNotFound):
			return nil, err
		}
	}

	if m != nil {
		if creds, err := m.RetrieveDefault(); err == nil {
			return creds, creds.Validate()
		}
	}

	return nil, fmt.Errorf("%w: set %s, add a %q entry to %s, or run 'tweetcrawler auth login'",
		ErrCredentialsNotFound, EnvBearerToken, cfg.KeysKey, cfg.KeysFile)
}
