package identity

import "strings"

type Resolver struct {
	scheme Scheme
}

func NewResolver(scheme Scheme) *Resolver {
	if scheme == "" {
		scheme = SchemeHex
	}
	return &Resolver{scheme: scheme}
}

func (r *Resolver) Scheme() Scheme { return r.scheme }

// Resolve never fails. A blank authenticated id means the visitor is anonymous.
func (r *Resolver) Resolve(authenticatedID, clientIP string) Identity {
	if userID := strings.TrimSpace(authenticatedID); userID != "" {
		return Authenticated(userID)
	}
	return Anonymous(r.scheme.PublicUserID(clientIP))
}
