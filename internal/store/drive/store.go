// Package drive provides a Store backed by Google Drive.
//
// Credentials follow the installed-app OAuth flow: a client secrets file on
// disk, a cached token under the tokens directory refreshed transparently on
// expiry, and an interactive browser exchange through a local callback
// listener when no token exists yet. The Drive service is built lazily on
// first upload and shared by every subsequent call.
package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"paper-archiver/internal/archive"
)

const tokenFileName = "token.json"

// Config captures the OAuth material for the installed-app flow.
type Config struct {
	CredentialsFile string
	TokensDir       string
	CallbackPort    int
}

// Store uploads artifacts to Google Drive.
type Store struct {
	cfg    Config
	logger *zap.Logger

	initOnce sync.Once
	initErr  error
	svc      *driveapi.Service
}

// New builds a Drive store. No network traffic happens until the first
// Create call triggers lazy service construction.
func New(cfg Config, logger *zap.Logger) *Store {
	if cfg.CallbackPort == 0 {
		cfg.CallbackPort = 8888
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{cfg: cfg, logger: logger}
}

// Create uploads the file at localPath and returns its Drive reference.
func (s *Store) Create(ctx context.Context, name, localPath string) (archive.RemoteRef, error) {
	svc, err := s.service(ctx)
	if err != nil {
		return archive.RemoteRef{}, &archive.UploadError{Name: name, Cause: err}
	}

	file, err := os.Open(localPath)
	if err != nil {
		return archive.RemoteRef{}, &archive.UploadError{Name: name, Cause: fmt.Errorf("open artifact: %w", err)}
	}
	defer func() { _ = file.Close() }()

	created, err := svc.Files.
		Create(&driveapi.File{Name: name}).
		Media(file).
		Fields("id, name, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return archive.RemoteRef{}, &archive.UploadError{Name: name, Cause: fmt.Errorf("drive create: %w", err)}
	}

	return archive.RemoteRef{
		ID:       created.Id,
		Name:     created.Name,
		ViewLink: created.WebViewLink,
	}, nil
}

// service builds the Drive client exactly once. Concurrent first calls are
// serialized by the Once so the interactive flow cannot run twice.
func (s *Store) service(ctx context.Context) (*driveapi.Service, error) {
	s.initOnce.Do(func() {
		s.svc, s.initErr = s.buildService(ctx)
	})
	return s.svc, s.initErr
}

func (s *Store) buildService(ctx context.Context) (*driveapi.Service, error) {
	secrets, err := os.ReadFile(s.cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	conf, err := google.ConfigFromJSON(secrets, driveapi.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	conf.RedirectURL = fmt.Sprintf("http://localhost:%d/", s.cfg.CallbackPort)

	token, err := s.loadToken()
	if err != nil {
		s.logger.Info("no cached token, starting interactive authorization")
		token, err = s.authorize(ctx, conf)
		if err != nil {
			return nil, err
		}
		if err := s.saveToken(token); err != nil {
			s.logger.Warn("failed to cache token", zap.Error(err))
		}
	}

	// conf.Client refreshes the token transparently when it expires.
	svc, err := driveapi.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("build drive service: %w", err)
	}
	return svc, nil
}

// authorize runs the installed-app exchange: it prints the consent URL and
// waits for the OAuth redirect on a local callback listener.
func (s *Store) authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", s.cfg.CallbackPort))
	if err != nil {
		return nil, fmt.Errorf("start callback listener: %w", err)
	}

	codeCh := make(chan string, 1)
	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing authorization code", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authorization received. You may close this window.")
		select {
		case codeCh <- code:
		default:
		}
	})}
	go func() { _ = server.Serve(listener) }()
	defer func() { _ = server.Close() }()

	authURL := conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	s.logger.Info("visit the authorization URL in a browser", zap.String("url", authURL))

	var code string
	select {
	case code = <-codeCh:
	case <-ctx.Done():
		return nil, fmt.Errorf("authorization canceled: %w", ctx.Err())
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return token, nil
}

func (s *Store) tokenPath() string {
	return filepath.Join(s.cfg.TokensDir, tokenFileName)
}

func (s *Store) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.tokenPath())
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse cached token: %w", err)
	}
	return &token, nil
}

func (s *Store) saveToken(token *oauth2.Token) error {
	if err := os.MkdirAll(s.cfg.TokensDir, 0o700); err != nil {
		return fmt.Errorf("create tokens dir: %w", err)
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.WriteFile(s.tokenPath(), data, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
