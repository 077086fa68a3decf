package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAnonymousIsDeterministic(t *testing.T) {
	r := NewResolver(SchemeHex)

	first := r.Resolve("", "203.0.113.7")
	second := r.Resolve("", "203.0.113.7")

	assert.Equal(t, first, second)
	assert.False(t, first.IsAuthenticated())
	assert.Empty(t, first.UserID())

	digest := sha256.Sum256([]byte("203.0.113.7"))
	assert.Equal(t, "public_"+hex.EncodeToString(digest[:])[:16], first.PublicUserID())
	assert.Len(t, first.PublicUserID(), len("public_")+16)
}

func TestResolveDifferentIPsDiffer(t *testing.T) {
	r := NewResolver(SchemeHex)
	assert.NotEqual(t, r.Resolve("", "203.0.113.7").Key(), r.Resolve("", "203.0.113.8").Key())
}

func TestResolveAuthenticatedPassesIDThrough(t *testing.T) {
	r := NewResolver(SchemeHex)

	id := r.Resolve(" 42 ", "203.0.113.7")

	assert.True(t, id.IsAuthenticated())
	assert.Equal(t, "42", id.UserID())
	assert.Empty(t, id.PublicUserID())
	assert.Equal(t, "user:42", id.Key())
}

func TestResolveMissingIPUsesSentinel(t *testing.T) {
	r := NewResolver(SchemeHex)
	assert.Equal(t, r.Resolve("", UnknownIP), r.Resolve("", ""))
}

func TestUUIDSchemeUsesDigestPrefix(t *testing.T) {
	digest := sha256.Sum256([]byte("198.51.100.20"))
	want, err := uuid.FromBytes(digest[:16])
	require.NoError(t, err)

	id := NewResolver(SchemeUUID).Resolve("", "198.51.100.20")

	assert.Equal(t, want.String(), id.PublicUserID())
	assert.NotEqual(t, NewResolver(SchemeHex).Resolve("", "198.51.100.20").PublicUserID(), id.PublicUserID())
}

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme("")
	require.NoError(t, err)
	assert.Equal(t, SchemeHex, s)

	s, err = ParseScheme("UUID")
	require.NoError(t, err)
	assert.Equal(t, SchemeUUID, s)

	_, err = ParseScheme("md5")
	assert.ErrorIs(t, err, ErrUnknownScheme)
}

func TestZeroIdentityHasNoKey(t *testing.T) {
	assert.True(t, Identity{}.IsZero())
	assert.Empty(t, Identity{}.Key())
	assert.True(t, Authenticated("  ").IsZero())
}
