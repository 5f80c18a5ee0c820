// Package credentials resolves push credentials for remote operations. Secrets
// live in the operating system keyring; a prompter fills the keyring on first
// use or after an authentication failure invalidates the stored entry.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zalando/go-keyring"

	"github.com/redeployhq/redeploy/pkg/deploy"
)

const (
	usernameAccount = "username"
	secretAccount   = "secret"
)

// Prompter asks the operator for credentials when the keyring has none.
type Prompter interface {
	Prompt(ctx context.Context) (deploy.Credentials, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context) (deploy.Credentials, error)

// Prompt implements Prompter.
func (f PrompterFunc) Prompt(ctx context.Context) (deploy.Credentials, error) {
	return f(ctx)
}

// Source is a deploy.CredentialSource backed by the OS keyring. Resolved
// credentials are cached for the lifetime of the process so repeated pushes
// within a session cost one lookup.
type Source struct {
	service  string
	prompter Prompter
	log      zerolog.Logger

	mu     sync.Mutex
	cached *deploy.Credentials
}

// NewSource creates a credential source scoped to a keyring service name,
// conventionally "redeploy:<remote host>".
func NewSource(service string, prompter Prompter, log zerolog.Logger) *Source {
	return &Source{
		service:  service,
		prompter: prompter,
		log:      log.With().Str("component", "credentials").Logger(),
	}
}

// Credentials returns cached credentials, falling back to the keyring and
// finally to the prompter. Prompted credentials are written back to the
// keyring so the next session skips the prompt.
func (s *Source) Credentials(ctx context.Context) (deploy.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return *s.cached, nil
	}

	if creds, ok := s.fromKeyring(); ok {
		s.cached = &creds
		return creds, nil
	}

	if s.prompter == nil {
		return deploy.Credentials{}, deploy.NewAuthError("no stored credentials and no prompter configured", nil)
	}

	creds, err := s.prompter.Prompt(ctx)
	if err != nil {
		return deploy.Credentials{}, fmt.Errorf("prompting for credentials: %w", err)
	}
	if creds.Username == "" || creds.Secret == "" {
		return deploy.Credentials{}, deploy.NewAuthError("prompt returned empty credentials", nil)
	}

	s.store(creds)
	s.cached = &creds
	return creds, nil
}

// Invalidate drops the cached credentials and removes the keyring entries so
// the next resolution prompts again. Called after an authentication failure.
func (s *Source) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = nil
	for _, account := range []string{usernameAccount, secretAccount} {
		if err := keyring.Delete(s.service, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			s.log.Warn().Err(err).Str("account", account).Msg("failed to remove keyring entry")
		}
	}
	s.log.Info().Str("service", s.service).Msg("stored credentials invalidated")
}

func (s *Source) fromKeyring() (deploy.Credentials, bool) {
	username, err := keyring.Get(s.service, usernameAccount)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			s.log.Warn().Err(err).Msg("keyring lookup failed")
		}
		return deploy.Credentials{}, false
	}
	secret, err := keyring.Get(s.service, secretAccount)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			s.log.Warn().Err(err).Msg("keyring lookup failed")
		}
		return deploy.Credentials{}, false
	}
	return deploy.Credentials{Username: username, Secret: secret}, true
}

func (s *Source) store(creds deploy.Credentials) {
	if err := keyring.Set(s.service, usernameAccount, creds.Username); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist username to keyring")
		return
	}
	if err := keyring.Set(s.service, secretAccount, creds.Secret); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist secret to keyring")
	}
}
