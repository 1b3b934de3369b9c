package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	appErrors "github.com/fatali-fataliyev/financez/errors"
	"github.com/fatali-fataliyev/financez/internal/contextutil"
	"github.com/fatali-fataliyev/financez/logging"
)

// TokenKey is the fixed key the credential is persisted under.
const TokenKey = "userToken"

// SessionManager owns the active credential. Construct one per process and
// pass it to whatever needs to authorize requests.
type SessionManager struct {
	mu         sync.RWMutex
	store      TokenStore
	credential string
	onLogout   []func()
}

func NewSessionManager(store TokenStore) *SessionManager {
	return &SessionManager{store: store}
}

// Restore loads a persisted credential. Storage faults are logged and
// reported as "no session"; the user logs in again.
func (m *SessionManager) Restore(ctx context.Context) (string, bool) {
	traceID := contextutil.TraceIDFromContext(ctx)

	credential, ok, err := m.store.Get(ctx, TokenKey)
	if err != nil {
		logging.Logger.Warnf("[TraceID=%s] | failed to restore session, continuing without one | Error: %v", traceID, err)
		return "", false
	}
	credential = strings.TrimSpace(credential)
	if !ok || credential == "" {
		return "", false
	}

	m.mu.Lock()
	m.credential = credential
	m.mu.Unlock()

	logging.Logger.Debugf("[TraceID=%s] | session restored", traceID)
	return credential, true
}

// Login persists credential and then makes it the active session.
func (m *SessionManager) Login(ctx context.Context, credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return appErrors.Validation("Credential cannot be empty!")
	}

	if err := m.store.Set(ctx, TokenKey, credential); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	m.mu.Lock()
	m.credential = credential
	m.mu.Unlock()

	logging.Logger.Infof("[TraceID=%s] | logged in", contextutil.TraceIDFromContext(ctx))
	return nil
}

// Logout clears the active credential and its persisted copy. Logout
// hooks run even when removing the persisted copy fails.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.credential = ""
	hooks := append([]func(){}, m.onLogout...)
	m.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}

	if err := m.store.Delete(ctx, TokenKey); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to remove persisted session | Error: %v", contextutil.TraceIDFromContext(ctx), err)
		return fmt.Errorf("failed to remove persisted session: %w", err)
	}

	logging.Logger.Infof("[TraceID=%s] | logged out", contextutil.TraceIDFromContext(ctx))
	return nil
}

func (m *SessionManager) CurrentCredential() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.credential, m.credential != ""
}

// OnLogout registers fn to run whenever the session is cleared.
func (m *SessionManager) OnLogout(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLogout = append(m.onLogout, fn)
}
