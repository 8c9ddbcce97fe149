package app

import (
	"tubechat/pkg/domain"
)

// StoreUser resolves or creates the user for a verified identity assertion
// and refreshes profile fields that changed upstream.
func (a *App) StoreUser(identity domain.Identity) (domain.User, error) {
	return a.requireUser(identity)
}

// CurrentUser returns the stored user for an assertion. An anonymous caller
// gets (zero, false, nil), not an error: "who am I" is answerable without
// being signed in.
func (a *App) CurrentUser(identity domain.Identity) (domain.User, bool, error) {
	if !identity.Valid() {
		return domain.User{}, false, nil
	}
	return a.store.GetUserBySubject(identity.Subject)
}
