// Package identity derives the ledger identity of a widget visitor.
//
// A visitor is either an authenticated platform user, identified by the
// platform's own user id, or an anonymous visitor identified by a stable
// pseudonym derived from a hash of the client IP address. The two are never
// mixed on one usage record.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Kind string

const (
	KindAuthenticated Kind = "user"
	KindAnonymous     Kind = "anonymous"
)

// UnknownIP is hashed when no client address could be determined.
const UnknownIP = "unknown"

const publicPrefix = "public_"

// Identity is either Authenticated(userID) or Anonymous(publicUserID).
type Identity struct {
	kind  Kind
	value string
}

func Authenticated(userID string) Identity {
	return Identity{kind: KindAuthenticated, value: strings.TrimSpace(userID)}
}

func Anonymous(publicUserID string) Identity {
	return Identity{kind: KindAnonymous, value: strings.TrimSpace(publicUserID)}
}

func (i Identity) Kind() Kind { return i.kind }

func (i Identity) IsZero() bool { return i.kind == "" || i.value == "" }

func (i Identity) IsAuthenticated() bool { return i.kind == KindAuthenticated }

// UserID is empty for anonymous visitors.
func (i Identity) UserID() string {
	if i.kind != KindAuthenticated {
		return ""
	}
	return i.value
}

// PublicUserID is empty for authenticated visitors.
func (i Identity) PublicUserID() string {
	if i.kind != KindAnonymous {
		return ""
	}
	return i.value
}

// Key is a single comparable string, unique across both variants.
func (i Identity) Key() string {
	if i.IsZero() {
		return ""
	}
	if i.kind == KindAuthenticated {
		return "user:" + i.value
	}
	return "anon:" + i.value
}

func (i Identity) String() string { return i.Key() }

// Scheme selects how anonymous pseudonyms are derived. The schemes produce
// unrelated values for the same IP, so a deployment must stick to one.
type Scheme string

const (
	SchemeHex  Scheme = "hex"
	SchemeUUID Scheme = "uuid"
)

var ErrUnknownScheme = errors.New("unknown_identity_scheme")

func ParseScheme(raw string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SchemeHex:
		return SchemeHex, nil
	case SchemeUUID:
		return SchemeUUID, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, raw)
	}
}

// PublicUserID derives the anonymous pseudonym for an IP address.
func (s Scheme) PublicUserID(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = UnknownIP
	}
	digest := sha256.Sum256([]byte(ip))

	if s == SchemeUUID {
		id, err := uuid.FromBytes(digest[:16])
		if err == nil {
			return id.String()
		}
	}
	return publicPrefix + hex.EncodeToString(digest[:])[:16]
}
