package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

const gdriveCredFile = "gdrive_credentials.json"

func (s *FileStore) loadGDriveConfig() (*oauth2.Config, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, gdriveCredFile))
	if err != nil {
		return nil, fmt.Errorf("gdrive_credentials.json not found in ~/.drivemigrate: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	return cfg, nil
}

// AuthorizeGDrive runs the out-of-band code flow and stores the token for the
// given account email.
func (s *FileStore) AuthorizeGDrive(account string) error {
	cfg, err := s.loadGDriveConfig()
	if err != nil {
		return err
	}

	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Visit the URL while signed in as %s:\n\n%s\n\n", account, authURL)
	fmt.Print("Enter the code here: ")

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return fmt.Errorf("failed to read code: %w", err)
	}

	token, err := cfg.Exchange(context.Background(), code)
	if err != nil {
		return fmt.Errorf("failed to exchange token: %w", err)
	}

	if err := s.saveToken("gdrive", account, token); err != nil {
		return err
	}

	fmt.Printf("Token saved for %s\n", account)
	return nil
}
