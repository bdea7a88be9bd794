package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"drivemigrate/internal/model"

	"golang.org/x/oauth2"
)

// FileStore keeps OAuth tokens as JSON files under the app home directory,
// one file per provider+account pair — a transfer always spans two accounts,
// so a single token file per provider is not enough.
type FileStore struct {
	dir string
}

func NewFileStore() (*FileStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home dir: %w", err)
	}

	dir := filepath.Join(home, ".drivemigrate")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

// Credential loads the stored token for the account, refreshes it if the
// provider's OAuth config allows, and returns an opaque snapshot for the work
// item. The engine never refreshes mid-job.
func (s *FileStore) Credential(ctx context.Context, provider model.Provider, account string) (model.Credential, error) {
	token, err := s.loadToken(provider, account)
	if err != nil {
		return model.Credential{}, err
	}

	cfg, err := s.oauthConfig(provider)
	if err != nil {
		return model.Credential{}, err
	}

	fresh, err := cfg.TokenSource(ctx, token).Token()
	if err != nil {
		return model.Credential{}, fmt.Errorf("failed to refresh %s token for %s: %w", provider, account, err)
	}

	if fresh.AccessToken != token.AccessToken {
		_ = s.saveToken(provider, account, fresh)
		token = fresh
	}

	raw, err := json.Marshal(token)
	if err != nil {
		return model.Credential{}, err
	}

	return model.Credential{Provider: provider, Token: raw}, nil
}

func (s *FileStore) oauthConfig(provider model.Provider) (*oauth2.Config, error) {
	switch provider {
	case model.ProviderGDrive:
		return s.loadGDriveConfig()
	case model.ProviderDropbox:
		return s.loadDropboxConfig()
	default:
		return nil, fmt.Errorf("unsupported provider: %q", provider)
	}
}

func (s *FileStore) tokenPath(provider model.Provider, account string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_token_%s.json", provider, account))
}

func (s *FileStore) saveToken(provider model.Provider, account string, token *oauth2.Token) error {
	b, err := json.Marshal(token)
	if err != nil {
		return err
	}

	path := s.tokenPath(provider, account)
	if err := os.WriteFile(path, b, 0600); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}

func (s *FileStore) loadToken(provider model.Provider, account string) (*oauth2.Token, error) {
	b, err := os.ReadFile(s.tokenPath(provider, account))
	if err != nil {
		return nil, fmt.Errorf("%s auth needed for %s. Please run 'drivemigrate auth %s %s' first: %w",
			provider, account, provider, account, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(b, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	return &token, nil
}
