package evolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fides/internal/credential/models"
)

func snapshot(counter uint64) models.SignatureSnapshot {
	return models.SignatureSnapshot{
		IdentityHash:     "hash-1",
		EvolutionCounter: counter,
		EvolutionKey:     "evo-key",
		Fingerprints: models.ModalFingerprints{
			Text: "t1", Image: "i1", Audio: "a1", Object: "o1",
		},
	}
}

func state(counter uint64) models.SignatureState {
	return models.SignatureState{
		IdentityHash:     "hash-1",
		EvolutionCounter: counter,
		EvolutionKey:     "evo-key",
		Fingerprints: models.ModalFingerprints{
			Text: "t1", Image: "i1", Audio: "a1", Object: "o1",
		},
	}
}

func TestAssess(t *testing.T) {
	v := New()

	t.Run("unchanged state is legitimate", func(t *testing.T) {
		a := v.Assess(snapshot(5), 5, state(5))
		assert.True(t, a.Legitimate)
		assert.Equal(t, FailureNone, a.Failure)
	})

	t.Run("forward evolution within the bound is legitimate", func(t *testing.T) {
		a := v.Assess(snapshot(5), 5, state(5+DefaultMaxStep))
		assert.True(t, a.Legitimate)
	})

	t.Run("key mismatch is a hard fail", func(t *testing.T) {
		current := state(6)
		current.EvolutionKey = "stolen-key"
		a := v.Assess(snapshot(5), 5, current)
		assert.False(t, a.Legitimate)
		assert.Equal(t, FailureKeyMismatch, a.Failure)
	})

	t.Run("counter below snapshot is a rollback", func(t *testing.T) {
		a := v.Assess(snapshot(5), 5, state(4))
		assert.False(t, a.Legitimate)
		assert.Equal(t, FailureRollback, a.Failure)
		assert.Contains(t, a.Detail, "rollback")
	})

	t.Run("counter below the recorded current counter is a rollback", func(t *testing.T) {
		// Snapshot at 5, record has advanced to 9; presenting 7 replays an
		// old state even though it is past the snapshot.
		a := v.Assess(snapshot(5), 9, state(7))
		assert.False(t, a.Legitimate)
		assert.Equal(t, FailureRollback, a.Failure)
	})

	t.Run("jump past the bound is excessive", func(t *testing.T) {
		a := v.Assess(snapshot(5), 5, state(5+DefaultMaxStep+1))
		assert.False(t, a.Legitimate)
		assert.Equal(t, FailureExcessiveJump, a.Failure)
		assert.Contains(t, a.Detail, "excessive jump")
	})

	t.Run("custom step bound applies", func(t *testing.T) {
		tight := New(WithMaxStep(2))
		assert.True(t, tight.Assess(snapshot(5), 5, state(7)).Legitimate)
		assert.False(t, tight.Assess(snapshot(5), 5, state(8)).Legitimate)
	})
}

func TestDrift(t *testing.T) {
	v := New()

	t.Run("identical fingerprints score zero", func(t *testing.T) {
		assert.Zero(t, v.Drift(snapshot(1).Fingerprints, state(1).Fingerprints))
	})

	t.Run("one mismatched modality scores one quarter", func(t *testing.T) {
		current := state(1).Fingerprints
		current.Image = "changed"
		assert.InDelta(t, 0.25, v.Drift(snapshot(1).Fingerprints, current), 1e-9)
	})

	t.Run("all mismatched modalities score one", func(t *testing.T) {
		current := models.ModalFingerprints{Text: "x", Image: "x", Audio: "x", Object: "x"}
		assert.InDelta(t, 1.0, v.Drift(snapshot(1).Fingerprints, current), 1e-9)
	})

	t.Run("drift is always within the unit interval", func(t *testing.T) {
		base := snapshot(1).Fingerprints
		variants := []models.ModalFingerprints{
			base,
			{Text: "x", Image: base.Image, Audio: base.Audio, Object: base.Object},
			{Text: "x", Image: "x", Audio: base.Audio, Object: base.Object},
			{Text: "x", Image: "x", Audio: "x", Object: base.Object},
			{Text: "x", Image: "x", Audio: "x", Object: "x"},
		}
		for _, current := range variants {
			d := v.Drift(base, current)
			assert.GreaterOrEqual(t, d, 0.0)
			assert.LessOrEqual(t, d, 1.0)
		}
	})

	t.Run("custom weights are normalized", func(t *testing.T) {
		weighted := New(WithWeights(Weights{Text: 3, Image: 1, Audio: 1, Object: 1}))
		current := snapshot(1).Fingerprints
		current.Text = "changed"
		require.InDelta(t, 0.5, weighted.Drift(snapshot(1).Fingerprints, current), 1e-9)
	})
}
