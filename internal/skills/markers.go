package skills

import (
	"strings"
)

// Marker prefixes the model embeds in its replies. Markers are line-anchored;
// anything else on the line belongs to the marker, not to the visible text.
const (
	markerResolved         = "RESOLVED:"
	markerEscalate         = "ACTION:ESCALATE:"
	markerPhaseComplete    = "ACTION:PHASE_COMPLETE:"
	markerSaveDocument     = "ACTION:SAVE_DOCUMENT:"
	markerVerifyEmail      = "ACTION:VERIFY_EMAIL"
	markerAlternativePhone = "ACTION:ALTERNATIVE_PHONE:"
)

// PhaseCompletion is one ACTION:PHASE_COMPLETE:<field>:<value> marker.
type PhaseCompletion struct {
	Field string
	Value string
}

// Markers is everything the model signaled in one reply.
type Markers struct {
	Resolved        bool
	ResolutionToken string

	Escalate         bool
	EscalationReason string

	PhaseCompletions []PhaseCompletion

	SaveDocument string

	VerifyEmail      bool
	VerifyEmailAddr  string
	AlternativePhone string
}

// ParseMarkers splits a raw model reply into its control markers and the
// visible text to send over WhatsApp. Marker lines are removed entirely and
// the remaining whitespace is collapsed. A reply can carry several markers;
// visible may come back empty.
func ParseMarkers(raw string) (Markers, string) {
	var m Markers
	var visible []string

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, markerResolved):
			m.Resolved = true
			m.ResolutionToken = strings.TrimSpace(strings.TrimPrefix(trimmed, markerResolved))
		case strings.HasPrefix(trimmed, markerEscalate):
			m.Escalate = true
			m.EscalationReason = strings.TrimSpace(strings.TrimPrefix(trimmed, markerEscalate))
		case strings.HasPrefix(trimmed, markerPhaseComplete):
			rest := strings.TrimPrefix(trimmed, markerPhaseComplete)
			field, value, _ := strings.Cut(rest, ":")
			m.PhaseCompletions = append(m.PhaseCompletions, PhaseCompletion{
				Field: strings.TrimSpace(field),
				Value: strings.TrimSpace(value),
			})
		case strings.HasPrefix(trimmed, markerSaveDocument):
			m.SaveDocument = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, markerSaveDocument)))
		case strings.HasPrefix(trimmed, markerVerifyEmail):
			m.VerifyEmail = true
			rest := strings.TrimPrefix(trimmed, markerVerifyEmail)
			if strings.HasPrefix(rest, ":") {
				m.VerifyEmailAddr = strings.TrimSpace(rest[1:])
			}
		case strings.HasPrefix(trimmed, markerAlternativePhone):
			m.AlternativePhone = strings.TrimSpace(strings.TrimPrefix(trimmed, markerAlternativePhone))
		default:
			visible = append(visible, line)
		}
	}

	return m, collapseWhitespace(strings.Join(visible, "\n"))
}

// collapseWhitespace trims each line, drops runs of blank lines and trims
// the result.
func collapseWhitespace(s string) string {
	var out []string
	blank := true
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
