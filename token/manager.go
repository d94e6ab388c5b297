// Package token implements the engine's token lifecycle manager. It tracks
// per-credential expiry and triggers a transparent refresh before an
// authenticated call uses a stale token.
//
// Refresh is a mutually exclusive critical section keyed by the credential
// identity: concurrent calls against the same handshake that both observe
// an expired token issue exactly one refresh request, with the loser of
// the race reusing the winner's refreshed token.
package token

import (
	"context"
	"sync"
	"time"

	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/types"
)

// Manager tracks token expiry and serializes refreshes per credential. It
// holds no token state of its own; tokens live on the caller-owned
// credential and are updated in place under the credential's lock, so the
// expiry observation and the refresh write can never interleave.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a lifecycle manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[string]*sync.Mutex)}
}

// lock returns the mutex guarding one credential's token material.
func (m *Manager) lock(cred *types.Credential) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.key(cred)
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// EnsureFresh refreshes the credential's tokens when they are due and the
// module supports refresh. It returns whether a refresh was applied during
// this call.
//
// On refresh failure the call must fail fast rather than proceed with a
// stale token, so the returned error carries TOKEN_REFRESH_FAILED.
func (m *Manager) EnsureFresh(ctx context.Context, mod protocol.Module, cred *types.Credential) (bool, error) {
	if cred == nil {
		return false, nil
	}

	// The expiry check and the refresh write share one critical section:
	// a caller racing a refresh in flight blocks here, then re-observes
	// the expiry and sees the winner's token.
	l := m.lock(cred)
	l.Lock()
	defer l.Unlock()

	if !mod.TokenExpired(cred) {
		return false, nil
	}
	meta := mod.Metadata()
	if !meta.SupportsRefresh {
		// Protocols without refresh report TokenExpired as always false,
		// so reaching here means the module is misbehaving; treat the
		// token as usable and let the provider reject it.
		return false, nil
	}

	if err := mod.Refresh(ctx, cred); err != nil {
		if protoerr.CodeOf(err) == protoerr.CodeTokenRefreshFailed {
			return false, err
		}
		return false, protoerr.New(meta.Name, "refresh", protoerr.CodeTokenRefreshFailed, "token refresh failed").WithCause(err)
	}
	return true, nil
}

// Expiry reports the stored expiry instant for a credential, and false
// when none is known. The read waits out any refresh in flight.
func (m *Manager) Expiry(mod protocol.Module, cred *types.Credential) (time.Time, bool) {
	if cred != nil {
		l := m.lock(cred)
		l.Lock()
		defer l.Unlock()
	}
	return mod.TokenExpiry(cred)
}

// Status classifies the credential's token material on its own axis,
// independent of provider reachability.
func (m *Manager) Status(mod protocol.Module, cred *types.Credential) types.TokenStatus {
	if cred == nil {
		return types.TokenMissing
	}
	l := m.lock(cred)
	l.Lock()
	defer l.Unlock()
	if cred.Token.IsZero() {
		return types.TokenMissing
	}
	if mod.TokenExpired(cred) {
		return types.TokenExpired
	}
	return types.TokenValid
}

func (m *Manager) key(cred *types.Credential) string {
	if cred.ID != "" {
		return cred.ID
	}
	return cred.Protocol
}
