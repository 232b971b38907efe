// Package evolution decides whether an identity's signature evolution away
// from its issuance snapshot is legitimate, and scores the drift.
package evolution

import (
	"crypto/subtle"
	"fmt"

	"fides/internal/credential/models"
)

// DefaultMaxStep bounds how far the evolution counter may advance between
// two verifications. A jump past the bound suggests a replaced identity or
// a compromised evolution key.
const DefaultMaxStep = 100

// Failure classifies an illegitimate evolution. Each cause is surfaced
// distinctly; none is advisory.
type Failure string

const (
	FailureNone          Failure = ""
	FailureKeyMismatch   Failure = "key_mismatch"
	FailureRollback      Failure = "rollback"
	FailureExcessiveJump Failure = "excessive_jump"
)

// Assessment is the verifier's judgement on one presented signature state.
type Assessment struct {
	Legitimate bool
	Failure    Failure
	Detail     string
}

// Weights are the per-modality drift weights. They must sum to 1.
type Weights struct {
	Text   float64
	Image  float64
	Audio  float64
	Object float64
}

// EqualWeights weighs all four modalities at 0.25.
func EqualWeights() Weights {
	return Weights{Text: 0.25, Image: 0.25, Audio: 0.25, Object: 0.25}
}

// Verifier checks evolution legitimacy and computes drift scores.
type Verifier struct {
	maxStep uint64
	weights Weights
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithMaxStep overrides the maximum allowed counter advance per
// verification. Non-positive values keep the default.
func WithMaxStep(maxStep uint64) Option {
	return func(v *Verifier) {
		if maxStep > 0 {
			v.maxStep = maxStep
		}
	}
}

// WithWeights overrides the per-modality drift weights. Weights must be
// non-negative and sum to a positive value; they are normalized on use.
func WithWeights(w Weights) Option {
	return func(v *Verifier) {
		if w.Text >= 0 && w.Image >= 0 && w.Audio >= 0 && w.Object >= 0 &&
			w.Text+w.Image+w.Audio+w.Object > 0 {
			v.weights = w
		}
	}
}

// New creates a Verifier with equal modality weights and the default step
// bound.
func New(opts ...Option) *Verifier {
	v := &Verifier{maxStep: DefaultMaxStep, weights: EqualWeights()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// MaxStep returns the configured counter advance bound.
func (v *Verifier) MaxStep() uint64 { return v.maxStep }

// Assess judges whether the presented state is a legitimate evolution of
// the snapshot. The evolution key must match, the counter must not move
// backwards from the recorded current counter, and the advance past the
// snapshot counter must stay within the step bound.
func (v *Verifier) Assess(snapshot models.SignatureSnapshot, recordCounter uint64, current models.SignatureState) Assessment {
	if subtle.ConstantTimeCompare([]byte(snapshot.EvolutionKey), []byte(current.EvolutionKey)) != 1 {
		return Assessment{
			Failure: FailureKeyMismatch,
			Detail:  "presented evolution key does not match the snapshot's key",
		}
	}

	// Rollback is judged against the highest counter ever recorded for this
	// credential, not just the issuance snapshot: replaying an old but
	// post-snapshot state is still a rollback.
	floor := max(snapshot.EvolutionCounter, recordCounter)
	if current.EvolutionCounter < floor {
		return Assessment{
			Failure: FailureRollback,
			Detail: fmt.Sprintf("rollback: presented counter %d is below recorded counter %d",
				current.EvolutionCounter, floor),
		}
	}

	if step := current.EvolutionCounter - snapshot.EvolutionCounter; step > v.maxStep {
		return Assessment{
			Failure: FailureExcessiveJump,
			Detail: fmt.Sprintf("excessive jump: counter advanced %d past the snapshot, bound is %d",
				step, v.maxStep),
		}
	}

	return Assessment{Legitimate: true}
}

// Drift scores the distance between snapshot and current fingerprints as a
// weighted average of per-modality mismatches. The result is always within
// [0,1]: identical sets score 0, fully mismatched sets score 1.
func (v *Verifier) Drift(snapshot, current models.ModalFingerprints) float64 {
	total := v.weights.Text + v.weights.Image + v.weights.Audio + v.weights.Object
	var score float64
	if snapshot.Text != current.Text {
		score += v.weights.Text
	}
	if snapshot.Image != current.Image {
		score += v.weights.Image
	}
	if snapshot.Audio != current.Audio {
		score += v.weights.Audio
	}
	if snapshot.Object != current.Object {
		score += v.weights.Object
	}
	return score / total
}
