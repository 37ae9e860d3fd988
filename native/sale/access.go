package sale

import "github.com/ethereum/go-ethereum/common"

// requireAdmin is the capability check consulted at the top of every
// admin-restricted operation. The owner always passes.
func (e *Engine) requireAdmin(caller common.Address) error {
	if !e.state.isAdmin(caller) {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) requireOwner(caller common.Address) error {
	if caller != e.state.Owner {
		return ErrUnauthorized
	}
	return nil
}

// AddAdmin grants the administrator role. Owner-only.
func (e *Engine) AddAdmin(caller, account common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.state.Admins[account] = true
	e.emitAdminUpdated(account, true)
	return e.persist()
}

// RemoveAdmin revokes the administrator role. Owner-only; the owner's own
// authority is irrevocable.
func (e *Engine) RemoveAdmin(caller, account common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if account == e.state.Owner {
		return ErrOwnerRoleImmutable
	}
	delete(e.state.Admins, account)
	e.emitAdminUpdated(account, false)
	return e.persist()
}

// AddToWhitelist admits a single identifier. Admin-only.
func (e *Engine) AddToWhitelist(caller, account common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.state.Whitelist[account] = true
	e.emitWhitelistUpdated(caller, account, true)
	return e.persist()
}

// RemoveFromWhitelist clears a single admission entry. Admin-only.
func (e *Engine) RemoveFromWhitelist(caller, account common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	delete(e.state.Whitelist, account)
	e.emitWhitelistUpdated(caller, account, false)
	return e.persist()
}

// AddBatchToWhitelist admits every listed identifier. The authorization
// check runs once before the loop, so the batch either applies in full or
// not at all.
func (e *Engine) AddBatchToWhitelist(caller common.Address, accounts []common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	for _, account := range accounts {
		e.state.Whitelist[account] = true
		e.emitWhitelistUpdated(caller, account, true)
	}
	return e.persist()
}

// RemoveBatchFromWhitelist clears every listed admission entry. Admin-only.
func (e *Engine) RemoveBatchFromWhitelist(caller common.Address, accounts []common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	for _, account := range accounts {
		delete(e.state.Whitelist, account)
		e.emitWhitelistUpdated(caller, account, false)
	}
	return e.persist()
}

// IsWhitelisted reports whether the identifier may contribute.
func (e *Engine) IsWhitelisted(account common.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Whitelist[account]
}

// IsAdmin reports whether the identifier holds administrator authority.
func (e *Engine) IsAdmin(account common.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.isAdmin(account)
}

// Owner returns the immutable owner identifier.
func (e *Engine) Owner() common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Owner
}
