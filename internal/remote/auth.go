package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// tokenFilePath returns the path to the stored token file.
func tokenFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".pointage", "auth", "token.json"), nil
}

// oauth2Config returns the oauth2.Config for the workforce backend's token
// endpoint. The backend issues standard password-grant access/refresh token
// pairs; the project API key doubles as the OAuth client ID.
func oauth2Config(baseURL, apiKey string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: apiKey,
		Endpoint: oauth2.Endpoint{
			TokenURL:  baseURL + "/auth/v1/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// loadToken loads a previously saved token from disk.
func loadToken() (*oauth2.Token, error) {
	path, err := tokenFilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token file (delete %s to re-authenticate): %w", path, err)
	}
	return &tok, nil
}

// saveToken persists a token to disk.
func saveToken(tok *oauth2.Token) error {
	path, err := tokenFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating auth directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling token: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving token file: %w", err)
	}
	return nil
}

// savingTokenSource wraps a TokenSource and persists refreshed tokens.
type savingTokenSource struct {
	ts oauth2.TokenSource
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.ts.Token()
	if err != nil {
		return nil, err
	}
	// Best-effort save; ignore errors.
	_ = saveToken(tok)
	return tok, nil
}

// Login performs the password grant against the backend and persists the
// resulting token pair for later runs.
func Login(ctx context.Context, baseURL, apiKey, email, password string) error {
	cfg := oauth2Config(baseURL, apiKey)
	tok, err := cfg.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	if err := saveToken(tok); err != nil {
		return fmt.Errorf("could not save token: %w", err)
	}
	return nil
}

// AuthenticatedHTTPClient returns an HTTP client that attaches the stored
// bearer token, refreshing and re-persisting it as needed. It fails when no
// usable token is stored (run `pointage login`).
func AuthenticatedHTTPClient(ctx context.Context, baseURL, apiKey string) (*http.Client, error) {
	cfg := oauth2Config(baseURL, apiKey)

	tok, err := loadToken()
	if err != nil {
		return nil, err
	}
	if tok == nil || (tok.AccessToken == "" && tok.RefreshToken == "") {
		return nil, fmt.Errorf("not authenticated: run `pointage login` first")
	}
	ts := cfg.TokenSource(ctx, tok)
	return oauth2.NewClient(ctx, &savingTokenSource{ts: ts}), nil
}
