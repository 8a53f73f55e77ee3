// Package skills implements the conversation skill catalog: the per-task
// prompts, greetings and reply interpretation driving each conversation kind.
package skills

import (
	"fmt"
	"time"

	"glenda/internal/models"
)

// Skill drives one kind of conversation. Implementations are stateless;
// everything conversation-specific arrives via the Conversation record.
type Skill interface {
	Code() string

	// SystemPrompt builds the full system prompt, business context included.
	SystemPrompt(conv *models.Conversation) (string, error)

	// Greeting builds the opening message sent when the conversation starts.
	Greeting(conv *models.Conversation, now time.Time) (string, error)

	// ReminderMessage builds the nudge sent after a period of silence.
	// With final set this is the last nudge before the conversation closes,
	// and the text must say so.
	ReminderMessage(conv *models.Conversation, final bool) string

	// ProcessAIResponse interprets one raw model reply into an Action.
	ProcessAIResponse(conv *models.Conversation, raw string) (*Action, error)

	// OnResolve applies the skill's business writeback once the
	// conversation resolves. Called after the conversation row is closed;
	// a returned error never reopens it.
	OnResolve(conv *models.Conversation, action *Action) error
}

// Registry holds the boot-time skill set, keyed by code.
type Registry struct {
	skills map[string]Skill
}

func NewRegistry(list ...Skill) *Registry {
	r := &Registry{skills: make(map[string]Skill, len(list))}
	for _, s := range list {
		r.skills[s.Code()] = s
	}
	return r
}

// Get returns the skill registered under code.
func (r *Registry) Get(code string) (Skill, error) {
	s, ok := r.skills[code]
	if !ok {
		return nil, fmt.Errorf("unknown skill %q", code)
	}
	return s, nil
}

// Codes lists the registered skill codes.
func (r *Registry) Codes() []string {
	out := make([]string, 0, len(r.skills))
	for code := range r.skills {
		out = append(out, code)
	}
	return out
}
