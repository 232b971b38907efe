// Package signer provides the issuer-side signing of credentials and
// federation envelopes, and the canonical byte encodings those signatures
// cover.
package signer

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	id "fides/pkg/domain"
)

// fieldSeparator joins canonical fields. 0x1f (ASCII unit separator) cannot
// appear in UUID strings or hex digests, so the encoding is unambiguous.
const fieldSeparator = 0x1f

// KeyProvider supplies the issuer's signing key material. Implementations
// may back onto an HSM or KMS; the core only needs these two operations.
type KeyProvider interface {
	// SigningKey returns this node's private signing key.
	SigningKey(ctx context.Context) (ed25519.PrivateKey, error)
	// PublicKey returns the verification key for the given issuer.
	PublicKey(ctx context.Context, issuer id.IssuerID) (ed25519.PublicKey, error)
}

// CredentialDigest is the canonical byte encoding a credential signature
// covers: the credential id, the subject id, and the snapshot identity hash.
// These are the immutable fields; everything else may legitimately change
// (status, evolution record) without invalidating the signature.
func CredentialDigest(credentialID id.CredentialID, subjectID id.SubjectID, identityHash string) []byte {
	return bytes.Join([][]byte{
		[]byte(credentialID.String()),
		[]byte(subjectID.String()),
		[]byte(identityHash),
	}, []byte{fieldSeparator})
}

// SignCredential signs the canonical credential encoding.
func SignCredential(key ed25519.PrivateKey, credentialID id.CredentialID, subjectID id.SubjectID, identityHash string) []byte {
	return ed25519.Sign(key, CredentialDigest(credentialID, subjectID, identityHash))
}

// VerifyCredential verifies a credential signature against the issuer's
// public key.
func VerifyCredential(key ed25519.PublicKey, credentialID id.CredentialID, subjectID id.SubjectID, identityHash string, sig []byte) bool {
	if len(key) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(key, CredentialDigest(credentialID, subjectID, identityHash), sig)
}

// EnvelopeDigest is the canonical byte encoding a federation envelope
// signature covers: message id, type, sender, recipient, and payload. The
// delivered flag and timestamp are transport concerns and excluded.
func EnvelopeDigest(messageID id.MessageID, messageType, from, to string, payload []byte) []byte {
	return bytes.Join([][]byte{
		[]byte(messageID.String()),
		[]byte(messageType),
		[]byte(from),
		[]byte(to),
		payload,
	}, []byte{fieldSeparator})
}

// StaticKeyProvider holds one node keypair in memory plus the known public
// keys of peers. Development and test implementation of KeyProvider.
type StaticKeyProvider struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	self    id.IssuerID
	peers   map[id.IssuerID]ed25519.PublicKey
}

// NewStaticKeyProvider generates a fresh keypair for the given issuer.
func NewStaticKeyProvider(self id.IssuerID) (*StaticKeyProvider, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate issuer keypair: %w", err)
	}
	return &StaticKeyProvider{
		private: private,
		public:  public,
		self:    self,
		peers:   make(map[id.IssuerID]ed25519.PublicKey),
	}, nil
}

// NewStaticKeyProviderFromSeed derives the keypair from a 32-byte seed, so a
// node keeps a stable identity across restarts.
func NewStaticKeyProviderFromSeed(self id.IssuerID, seed []byte) (*StaticKeyProvider, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("issuer key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	private := ed25519.NewKeyFromSeed(seed)
	return &StaticKeyProvider{
		private: private,
		public:  private.Public().(ed25519.PublicKey),
		self:    self,
		peers:   make(map[id.IssuerID]ed25519.PublicKey),
	}, nil
}

func (p *StaticKeyProvider) SigningKey(_ context.Context) (ed25519.PrivateKey, error) {
	return p.private, nil
}

func (p *StaticKeyProvider) PublicKey(_ context.Context, issuer id.IssuerID) (ed25519.PublicKey, error) {
	if issuer == p.self {
		return p.public, nil
	}
	if key, ok := p.peers[issuer]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("no public key known for issuer %s", issuer)
}

// RegisterPeer records a peer issuer's verification key.
func (p *StaticKeyProvider) RegisterPeer(issuer id.IssuerID, key ed25519.PublicKey) {
	p.peers[issuer] = key
}
