package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	CredentialSourceEnv  = "env"
	CredentialSourceFile = "file"
	CredentialSourceNone = "none"
)

// CredentialStatus describes where Drive credentials came from and whether
// they parsed. It is reported by the debug endpoint.
type CredentialStatus struct {
	Source  string `json:"source"`
	Present bool   `json:"present"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
}

// LoadCredentials resolves service credentials from a JSON blob, falling back
// to a key file. Parse failures are logged and reported in the status, never
// returned: the caller gets nil credentials and an unauthenticated client.
func LoadCredentials(ctx context.Context, blob, keyFile string) (*google.Credentials, CredentialStatus) {
	logger := slog.Default()
	status := CredentialStatus{Source: CredentialSourceNone}

	if blob != "" {
		status = CredentialStatus{Source: CredentialSourceEnv, Present: true}
		creds, err := google.CredentialsFromJSON(ctx, []byte(blob), drive.DriveScope)
		if err == nil {
			status.Valid = true
			return creds, status
		}
		status.Error = err.Error()
		logger.Error("[CREDENTIALS] failed to parse credential blob from environment", "error", err)
	}

	if keyFile == "" {
		return nil, status
	}
	data, err := os.ReadFile(keyFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Error("[CREDENTIALS] failed to read key file", "path", keyFile, "error", err)
		}
		return nil, status
	}

	creds, err := google.CredentialsFromJSON(ctx, data, drive.DriveScope)
	if err != nil {
		logger.Error("[CREDENTIALS] failed to parse key file", "path", keyFile, "error", err)
		if !status.Present {
			status = CredentialStatus{Source: CredentialSourceFile, Present: true, Error: err.Error()}
		}
		return nil, status
	}
	return creds, CredentialStatus{Source: CredentialSourceFile, Present: true, Valid: true}
}

// NewDriveClient builds a Drive client from the configured credentials. With
// no usable credentials the client is still built and fails on first use.
func NewDriveClient(ctx context.Context, blob, keyFile string) (*Client, CredentialStatus, error) {
	creds, status := LoadCredentials(ctx, blob, keyFile)

	var opt option.ClientOption
	if creds != nil {
		opt = option.WithCredentials(creds)
	} else {
		slog.Warn("[CREDENTIALS] no usable Drive credentials, remote calls will fail", "source", status.Source)
		opt = option.WithHTTPClient(&http.Client{})
	}

	svc, err := drive.NewService(ctx, opt)
	if err != nil {
		return nil, status, fmt.Errorf("create drive service: %w", err)
	}
	return NewClient(svc), status, nil
}
