package usecase

// NeedsRefresh is exported for testing
var NeedsRefresh = (*AuthController).needsRefresh

// ScopeCount is exported for testing
func (uc *UseCases) ScopeCount() int {
	return uc.scopes.len()
}

// ErrSuperseded is exported for testing
var ErrSuperseded = errSuperseded
