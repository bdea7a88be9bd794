package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

const dropboxCredFile = "dropbox_credentials.json"

type dropboxCredentials struct {
	AppKey    string `json:"app_key"`
	AppSecret string `json:"app_secret"`
}

var dropboxEndpoint = oauth2.Endpoint{
	AuthURL:  "https://www.dropbox.com/oauth2/authorize",
	TokenURL: "https://api.dropboxapi.com/oauth2/token",
}

func (s *FileStore) loadDropboxConfig() (*oauth2.Config, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, dropboxCredFile))
	if err != nil {
		return nil, fmt.Errorf("dropbox_credentials.json not found in ~/.drivemigrate: %w", err)
	}

	var creds dropboxCredentials
	if err := json.Unmarshal(b, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse dropbox credentials: %w", err)
	}

	return &oauth2.Config{
		ClientID:     creds.AppKey,
		ClientSecret: creds.AppSecret,
		Endpoint:     dropboxEndpoint,
		RedirectURL:  "http://localhost:9999/callback",
		Scopes:       []string{"files.content.read", "files.content.write"},
	}, nil
}

// AuthorizeDropbox runs the browser redirect flow on a short-lived local
// callback server and stores the token for the given account.
func (s *FileStore) AuthorizeDropbox(account string) error {
	cfg, err := s.loadDropboxConfig()
	if err != nil {
		return err
	}

	authURL := cfg.AuthCodeURL("state-token",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("token_access_type", "offline"))

	fmt.Printf("Visit the URL while signed in as %s:\n\n%s\n\n", account, authURL)

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		codeCh <- r.URL.Query().Get("code")
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintln(w, "<h2>Authentication complete! You can close this window and return to the terminal.</h2>")
	})

	srv := &http.Server{Addr: ":9999", Handler: mux}
	go func() { _ = srv.ListenAndServe() }()

	fmt.Println("Authentication will complete after you log on via browser...")

	select {
	case code := <-codeCh:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)

		token, err := cfg.Exchange(context.Background(), code)
		if err != nil {
			return fmt.Errorf("failed to exchange token: %w", err)
		}

		if err := s.saveToken("dropbox", account, token); err != nil {
			return err
		}

		fmt.Printf("Dropbox token saved to %s\n", s.tokenPath("dropbox", account))
		return nil

	case <-time.After(2 * time.Minute):
		_ = srv.Shutdown(context.Background())
		return fmt.Errorf("authorization timed out")
	}
}
