package signer

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "fides/pkg/domain"
)

func TestCredentialSigning(t *testing.T) {
	issuer := id.IssuerID(mustUUID())
	provider, err := NewStaticKeyProvider(issuer)
	require.NoError(t, err)

	ctx := context.Background()
	key, err := provider.SigningKey(ctx)
	require.NoError(t, err)
	pub, err := provider.PublicKey(ctx, issuer)
	require.NoError(t, err)

	credentialID := id.NewCredentialID()
	subjectID := id.SubjectID(mustUUID())

	t.Run("signature verifies over the immutable fields", func(t *testing.T) {
		sig := SignCredential(key, credentialID, subjectID, "identity-hash")
		assert.True(t, VerifyCredential(pub, credentialID, subjectID, "identity-hash", sig))
	})

	t.Run("tampering any covered field breaks verification", func(t *testing.T) {
		sig := SignCredential(key, credentialID, subjectID, "identity-hash")
		assert.False(t, VerifyCredential(pub, id.NewCredentialID(), subjectID, "identity-hash", sig))
		assert.False(t, VerifyCredential(pub, credentialID, id.SubjectID(mustUUID()), "identity-hash", sig))
		assert.False(t, VerifyCredential(pub, credentialID, subjectID, "other-hash", sig))
	})

	t.Run("malformed key or signature never panics", func(t *testing.T) {
		sig := SignCredential(key, credentialID, subjectID, "identity-hash")
		assert.False(t, VerifyCredential(nil, credentialID, subjectID, "identity-hash", sig))
		assert.False(t, VerifyCredential(pub, credentialID, subjectID, "identity-hash", nil))
		assert.False(t, VerifyCredential(pub, credentialID, subjectID, "identity-hash", sig[:10]))
	})
}

func TestStaticKeyProvider(t *testing.T) {
	ctx := context.Background()
	self := id.IssuerID(mustUUID())
	other := id.IssuerID(mustUUID())

	provider, err := NewStaticKeyProvider(self)
	require.NoError(t, err)

	t.Run("unknown issuer has no key", func(t *testing.T) {
		_, err := provider.PublicKey(ctx, other)
		assert.Error(t, err)
	})

	t.Run("registered peer key is returned", func(t *testing.T) {
		peerPub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		provider.RegisterPeer(other, peerPub)

		got, err := provider.PublicKey(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, peerPub, got)
	})

	t.Run("seed derivation is stable", func(t *testing.T) {
		seed := make([]byte, ed25519.SeedSize)
		copy(seed, "fixed-seed-for-tests------------")

		a, err := NewStaticKeyProviderFromSeed(self, seed)
		require.NoError(t, err)
		b, err := NewStaticKeyProviderFromSeed(self, seed)
		require.NoError(t, err)

		aPub, err := a.PublicKey(ctx, self)
		require.NoError(t, err)
		bPub, err := b.PublicKey(ctx, self)
		require.NoError(t, err)
		assert.Equal(t, aPub, bPub)
	})

	t.Run("seed of wrong length is rejected", func(t *testing.T) {
		_, err := NewStaticKeyProviderFromSeed(self, []byte("short"))
		assert.Error(t, err)
	})
}

func TestEnvelopeDigest(t *testing.T) {
	messageID := id.NewMessageID()
	base := EnvelopeDigest(messageID, "negotiation", "node-a", "node-b", []byte(`{"k":1}`))

	t.Run("digest is deterministic", func(t *testing.T) {
		assert.Equal(t, base, EnvelopeDigest(messageID, "negotiation", "node-a", "node-b", []byte(`{"k":1}`)))
	})

	t.Run("field shifts change the digest", func(t *testing.T) {
		assert.NotEqual(t, base, EnvelopeDigest(messageID, "negotiation", "node-a", "node-c", []byte(`{"k":1}`)))
		assert.NotEqual(t, base, EnvelopeDigest(messageID, "escalation", "node-a", "node-b", []byte(`{"k":1}`)))
		assert.NotEqual(t, base, EnvelopeDigest(messageID, "negotiation", "node-a", "node-b", []byte(`{"k":2}`)))
	})
}

func mustUUID() uuid.UUID { return uuid.New() }
