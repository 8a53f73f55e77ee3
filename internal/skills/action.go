package skills

// Action is a skill's interpretation of one model reply. The conversation
// service executes it: sends Message, applies resolution or escalation,
// fires verification email, records an alternative phone. Several outcomes
// may combine in one action, e.g. escalate and resolve in the same turn.
type Action struct {
	// Message is the visible text to send. Empty means nothing to say,
	// unless the skill substituted a farewell.
	Message string

	Resolve         bool
	ResolutionToken string
	Summary         string
	// ResolutionData carries skill-specific resolution details, e.g. the
	// corrected email for a bounce.
	ResolutionData map[string]string

	Escalate         bool
	EscalationReason string

	// VerificationEmail is the address to send a verification mail to,
	// empty when none is due.
	VerificationEmail string

	AlternativePhone string
}
