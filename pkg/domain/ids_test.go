package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "fides/pkg/domain-errors"
)

// The parsing invariant: identifiers must be valid, non-empty, non-nil
// UUIDs at trust boundaries.
func TestParseCredentialID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseCredentialID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseCredentialID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseCredentialID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		parsed, err := ParseCredentialID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, CredentialID(valid), parsed)
	})
}

// Distinct ID types must not be interchangeable. If this compiles, the
// invariant holds; the runtime assertions are belt and braces.
func TestTypeDistinction(t *testing.T) {
	credentialID := CredentialID(uuid.New())
	subjectID := SubjectID(uuid.New())

	// var _ CredentialID = subjectID // compile error by design

	assert.NotEqual(t, uuid.UUID(credentialID), uuid.UUID(subjectID))
}

func TestJSONRoundTrip(t *testing.T) {
	original := NewCredentialID()

	encoded, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+original.String()+`"`, string(encoded))

	var decoded CredentialID
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, original, decoded)
}

func TestIsNil(t *testing.T) {
	assert.True(t, CredentialID{}.IsNil())
	assert.False(t, NewCredentialID().IsNil())
	assert.True(t, NodeID{}.IsNil())
	assert.False(t, NewNodeID().IsNil())
}

// Every aggregate that mints identifiers has a constructor, and each
// allocation is unique and non-nil.
func TestConstructors(t *testing.T) {
	assert.False(t, NewSubjectID().IsNil())
	assert.False(t, NewIssuerID().IsNil())
	assert.False(t, NewInstitutionID().IsNil())
	assert.False(t, NewRevocationID().IsNil())
	assert.False(t, NewMessageID().IsNil())
	assert.False(t, NewNegotiationID().IsNil())
	assert.False(t, NewAuditID().IsNil())

	assert.NotEqual(t, NewSubjectID(), NewSubjectID())
	assert.NotEqual(t, NewIssuerID(), NewIssuerID())
	assert.NotEqual(t, NewInstitutionID(), NewInstitutionID())
}
