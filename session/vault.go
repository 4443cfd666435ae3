// SPDX-License-Identifier: LGPL-3.0-or-later

package session

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when a vault lookup misses.
var ErrNotFound = errors.New("session: not found")

// Vault is the process-wide mapping mailbox_id -> Context, plus a
// secondary index discovery.sid -> pending Context for sessions that
// have not yet completed the handshake (spec §4.8).
type Vault struct {
	mu        sync.RWMutex
	byMbox    map[string]*Context
	byPendSID map[string]*Context
}

// NewVault builds an empty session vault.
func NewVault() *Vault {
	return &Vault{
		byMbox:    make(map[string]*Context),
		byPendSID: make(map[string]*Context),
	}
}

// PutPending indexes a not-yet-active context by its discovery SID.
func (v *Vault) PutPending(ctx *Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.byPendSID[ctx.SID] = ctx
}

// GetPending looks up a pending context by SID.
func (v *Vault) GetPending(sid string) (*Context, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	ctx, ok := v.byPendSID[sid]
	if !ok {
		return nil, ErrNotFound
	}
	return ctx, nil
}

// Activate moves a context from the pending index to the mailbox index,
// keyed by the mailbox ID installed during handshake. The caller must
// have already called ctx.InstallSessionKey.
func (v *Vault) Activate(ctx *Context, mailboxIDHex string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.byPendSID, ctx.SID)
	v.byMbox[mailboxIDHex] = ctx
}

// Get looks up an active context by mailbox ID (hex).
func (v *Vault) Get(mailboxIDHex string) (*Context, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	ctx, ok := v.byMbox[mailboxIDHex]
	if !ok {
		return nil, ErrNotFound
	}
	return ctx, nil
}

// Remove deletes a context from both indexes, e.g. on close or
// handover completion.
func (v *Vault) Remove(mailboxIDHex, sid string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.byMbox, mailboxIDHex)
	delete(v.byPendSID, sid)
}

// Len returns the number of active (mailbox-indexed) sessions.
func (v *Vault) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.byMbox)
}
