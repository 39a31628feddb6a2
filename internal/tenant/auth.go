package tenant

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// TokenSource supplies the bearer token for tenant requests.
type TokenSource interface {
	// Token returns the current token or ErrAuthRequired.
	Token() (string, error)
	// Clear forgets the token after the service rejected it.
	Clear() error
}

// TokenFileName is the file holding the token inside the config directory.
const TokenFileName = "token"

// FileTokenStore keeps the token in a 0600 file. A non-empty environment
// override takes precedence and is never written or cleared.
type FileTokenStore struct {
	mu     sync.Mutex
	path   string
	envVar string
	now    func() time.Time
}

// NewFileTokenStore creates a store for dir/token, overridden by envVar when
// set in the environment.
func NewFileTokenStore(dir, envVar string) *FileTokenStore {
	return &FileTokenStore{
		path:   filepath.Join(dir, TokenFileName),
		envVar: envVar,
		now:    time.Now,
	}
}

// Path returns the token file path.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Token implements TokenSource.
func (s *FileTokenStore) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := ""
	if s.envVar != "" {
		token = strings.TrimSpace(os.Getenv(s.envVar))
	}
	if token == "" {
		data, err := os.ReadFile(s.path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		token = strings.TrimSpace(string(data))
	}
	if token == "" {
		return "", ErrAuthRequired
	}
	if err := checkExpiry(token, s.now()); err != nil {
		return "", err
	}
	return token, nil
}

// Save stores token, replacing any previous one.
func (s *FileTokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrAuthRequired
	}
	if err := checkExpiry(token, s.now()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// Clear implements TokenSource by removing the token file.
func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	logrus.WithField("path", s.path).Debug("Stored token cleared")
	return nil
}

// StaticToken is a fixed token, used by the CLI --token flag.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", ErrAuthRequired
	}
	return string(t), nil
}

// Clear implements TokenSource; a static token cannot be forgotten.
func (t StaticToken) Clear() error { return nil }

// checkExpiry rejects JWTs whose exp claim has passed. The signature is not
// verified here; the service does that. Opaque tokens pass unchanged.
func checkExpiry(token string, now time.Time) error {
	exp, ok := TokenExpiry(token)
	if ok && !now.Before(exp) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, exp.Format(time.RFC3339))
	}
	return nil
}

// TokenExpiry returns the exp claim of a JWT, if any.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
