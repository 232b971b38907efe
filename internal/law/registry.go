package law

// Stable law identifiers. The numeric values are part of the wire and audit
// contract and must never be renumbered.
const (
	LawRightToChoose     = 1
	LawTransparency      = 2
	LawAuditTrail        = 3
	LawIdentityIntegrity = 4
	LawDataConsent       = 5
	LawCapabilityBounds  = 6
	LawLeastPrivilege    = 7
	LawRevocability      = 8
	LawNonImpersonation  = 9
	LawDutyToEscalate    = 10
	LawFederationConsent = 11
)

// registry maps law IDs to their definitions. Predicates are registered in a
// lookup table rather than closing over their own Law value, so a law can
// name itself in violations without initialization-order hazards.
var registry = buildRegistry()

func buildRegistry() map[int]Law {
	laws := []Law{
		{
			ID:          LawRightToChoose,
			Name:        "Right to Choose",
			Description: "Actions affecting a human require that human's consent.",
			predicate: func(c Context) (bool, string) {
				if !c.Bool("affectsHuman") {
					return true, ""
				}
				if !c.Bool("humanConsent") {
					return false, "action affects a human without recorded human consent"
				}
				return true, ""
			},
		},
		{
			ID:          LawTransparency,
			Name:        "Transparency of Action",
			Description: "An AI actor must disclose that it is acting.",
			predicate: func(c Context) (bool, string) {
				if !c.Bool("actorIsAI") {
					return true, ""
				}
				if !c.Bool("actionDisclosed") {
					return false, "AI actor has not disclosed the action"
				}
				return true, ""
			},
		},
		{
			ID:          LawAuditTrail,
			Name:        "Audit Trail",
			Description: "Every privileged action must be auditable.",
			predicate: func(c Context) (bool, string) {
				// The engine records an entry for every check regardless of
				// outcome, so this law only rejects explicit opt-outs.
				if c.Bool("auditDisabled") {
					return false, "action requested with auditing disabled"
				}
				return true, ""
			},
		},
		{
			ID:          LawIdentityIntegrity,
			Name:        "Identity Integrity",
			Description: "The acting identity must be verified.",
			predicate: func(c Context) (bool, string) {
				if !c.Bool("identityVerified") {
					return false, "acting identity has not been verified"
				}
				return true, ""
			},
		},
		{
			ID:          LawDataConsent,
			Name:        "Data Consent",
			Description: "Processing personal data requires data consent.",
			predicate: func(c Context) (bool, string) {
				if !c.Bool("involvesData") {
					return true, ""
				}
				if !c.Bool("dataConsent") {
					return false, "personal data is involved without data consent"
				}
				return true, ""
			},
		},
		{
			ID:          LawCapabilityBounds,
			Name:        "Capability Bounds",
			Description: "An actor may not operate beyond its granted tier and capabilities.",
			predicate: func(c Context) (bool, string) {
				if c.Has("requiredTier") && c.Int("currentTier") < c.Int("requiredTier") {
					return false, "current tier is below the required tier"
				}
				if required := c.String("requiredCapability"); required != "" {
					for _, cap := range c.Strings("availableCapabilities") {
						if cap == required {
							return true, ""
						}
					}
					return false, "required capability is not among the available capabilities"
				}
				return true, ""
			},
		},
		{
			ID:          LawLeastPrivilege,
			Name:        "Least Privilege",
			Description: "Privilege elevation requires explicit approval.",
			predicate: func(c Context) (bool, string) {
				if !c.Bool("elevationRequested") {
					return true, ""
				}
				if !c.Bool("elevationApproved") {
					return false, "privilege elevation requested without approval"
				}
				return true, ""
			},
		},
		{
			ID:          LawRevocability,
			Name:        "Revocability",
			Description: "A revoked credential's holder must cease acting under it.",
			predicate: func(c Context) (bool, string) {
				if c.Bool("credentialRevoked") && c.Bool("aiStillActing") {
					return false, "holder is still acting under a revoked credential"
				}
				return true, ""
			},
		},
		{
			ID:          LawNonImpersonation,
			Name:        "Non-Impersonation",
			Description: "An actor must act only as the identity it actually holds.",
			predicate: func(c Context) (bool, string) {
				claimed := c.String("claimedSubject")
				if claimed == "" {
					return true, ""
				}
				if claimed != c.String("actualSubject") {
					return false, "claimed subject does not match the actual subject"
				}
				return true, ""
			},
		},
		{
			ID:          LawDutyToEscalate,
			Name:        "Duty to Escalate",
			Description: "Detected harm must be escalated, never suppressed.",
			predicate: func(c Context) (bool, string) {
				if !c.Bool("harmDetected") {
					return true, ""
				}
				if !c.Bool("harmEscalated") {
					return false, "harm was detected but not escalated"
				}
				return true, ""
			},
		},
		{
			ID:          LawFederationConsent,
			Name:        "Federation Consent",
			Description: "Cross-network actions require the peer network's authorization.",
			predicate: func(c Context) (bool, string) {
				if !c.Bool("crossNetwork") {
					return true, ""
				}
				if !c.Bool("peerAuthorized") {
					return false, "cross-network action without peer authorization"
				}
				return true, ""
			},
		},
	}

	out := make(map[int]Law, len(laws))
	for _, l := range laws {
		out[l.ID] = l
	}
	return out
}

// Get looks up a law by ID.
func Get(id int) (Law, bool) {
	l, ok := registry[id]
	return l, ok
}

// All returns every registered law ordered by ID.
func All() []Law {
	out := make([]Law, 0, len(registry))
	for i := 1; i <= len(registry); i++ {
		out = append(out, registry[i])
	}
	return out
}

// AllIDs returns every registered law ID in ascending order.
func AllIDs() []int {
	out := make([]int, 0, len(registry))
	for i := 1; i <= len(registry); i++ {
		out = append(out, i)
	}
	return out
}

// Law subsets checked by the credential manager per operation.
var (
	// IssuanceLaws gate credential issuance: consent, capability bounds, audit.
	IssuanceLaws = []int{LawRightToChoose, LawAuditTrail, LawDataConsent, LawCapabilityBounds}

	// VerificationLaws gate access verification.
	VerificationLaws = []int{LawAuditTrail, LawIdentityIntegrity, LawCapabilityBounds, LawNonImpersonation}

	// RevocationLaws gate credential revocation.
	RevocationLaws = []int{LawAuditTrail, LawRevocability}

	// TransitionLaws gate the downgrade of a revoked holder to a peer identity.
	TransitionLaws = []int{LawAuditTrail, LawRevocability, LawFederationConsent}
)
