package services

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"glenda/internal/models"
	"glenda/internal/settings"
)

var hhmmPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// JobStatus describes one scheduled job for the dashboard.
type JobStatus struct {
	Name    string    `json:"name"`
	Enabled bool      `json:"enabled"`
	NextRun time.Time `json:"next_run"`
}

// CronStatusProvider exposes the scheduler's job table.
type CronStatusProvider interface {
	Jobs() []JobStatus
}

// Snapshot is the dashboard's one-call view of the engine.
type Snapshot struct {
	Params              map[string]string `json:"params"`
	Jobs                []JobStatus       `json:"jobs"`
	CreditsOK           bool              `json:"credits_ok"`
	DryRun              bool              `json:"dry_run"`
	InputTokens         int64             `json:"input_tokens"`
	OutputTokens        int64             `json:"output_tokens"`
	SpendUSD            float64           `json:"spend_usd"`
	ActiveConversations int64             `json:"active_conversations"`
	PendingBounces      int64             `json:"pending_bounces"`
	MessagesSent        int64             `json:"messages_sent"`
	ActiveAccount       string            `json:"active_account"`
}

// DashboardService is the control plane facade: runtime parameters, credit
// checks and the WhatsApp account switch.
type DashboardService struct {
	db       *gorm.DB
	settings *settings.Store
	guard    *CreditGuard
	cron     CronStatusProvider
}

func NewDashboardService(db *gorm.DB, st *settings.Store, guard *CreditGuard) *DashboardService {
	return &DashboardService{db: db, settings: st, guard: guard}
}

// SetCron wires the scheduler in after construction; the scheduler itself
// depends on the services.
func (s *DashboardService) SetCron(cron CronStatusProvider) { s.cron = cron }

// Editable parameter keys and how to validate them.
var editableParams = map[string]func(string) error{
	settings.KeyDryRun:                 validateBool,
	settings.KeyActiveDB:               nil,
	settings.KeyWASendsThreshold:       validateInt,
	settings.KeyClaudeSpendLimitUSD:    validateFloat,
	settings.KeyClaudeInputRate:        validateFloat,
	settings.KeyClaudeOutputRate:       validateFloat,
	settings.KeyScheduleWeekdayStart:   validateHHMM,
	settings.KeyScheduleWeekdayEnd:     validateHHMM,
	settings.KeyScheduleWeekendStart:   validateHHMM,
	settings.KeyScheduleWeekendEnd:     validateHHMM,
	settings.KeyHolidays:               validateHolidays,
	settings.KeyAgentDisplayName:       nil,
	settings.KeyInstitutionDisplayName: nil,
	settings.KeyWhatsAppSendInterval:   validateInt,
	settings.KeyVerificationEmailFrom:  nil,
	settings.KeyEscalationEmailFrom:    nil,
	settings.KeyEscalationEmailTo:      nil,
	settings.KeyPollEnabled:            validateBool,
	settings.KeyTimeoutEnabled:         validateBool,
	settings.KeyArchiveEnabled:         validateBool,
	settings.KeyCreditsEnabled:         validateBool,
}

// Snapshot assembles the dashboard view.
func (s *DashboardService) Snapshot() (*Snapshot, error) {
	snap := &Snapshot{
		Params:        make(map[string]string, len(editableParams)),
		CreditsOK:     s.settings.CreditsOK(),
		DryRun:        s.settings.DryRun(),
		ActiveAccount: s.settings.Get(settings.KeyWhatsAppActiveAccount, "primary"),
	}
	for key := range editableParams {
		snap.Params[key] = s.settings.Get(key, "")
	}
	if s.cron != nil {
		snap.Jobs = s.cron.Jobs()
	}

	var totals struct {
		Input  int64
		Output int64
	}
	err := s.db.Model(&models.Message{}).
		Select("COALESCE(SUM(ai_input_tokens),0) AS input, COALESCE(SUM(ai_output_tokens),0) AS output").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("sum token usage: %w", err)
	}
	snap.InputTokens = totals.Input
	snap.OutputTokens = totals.Output

	if snap.SpendUSD, err = s.guard.Spend(); err != nil {
		return nil, err
	}

	err = s.db.Model(&models.Conversation{}).
		Where("state IN ?", []string{models.StateWaiting, models.StateActive}).
		Count(&snap.ActiveConversations).Error
	if err != nil {
		return nil, fmt.Errorf("count active conversations: %w", err)
	}
	err = s.db.Model(&models.BounceLog{}).
		Where("state <> ?", models.BounceStateResolved).
		Count(&snap.PendingBounces).Error
	if err != nil {
		return nil, fmt.Errorf("count pending bounces: %w", err)
	}
	err = s.db.Model(&models.Message{}).
		Where("direction = ? AND body <> ''", models.DirectionOutbound).
		Count(&snap.MessagesSent).Error
	if err != nil {
		return nil, fmt.Errorf("count sent messages: %w", err)
	}
	return snap, nil
}

// ApplyParams validates and stores a set of parameter updates. Either all
// values validate or nothing is written.
func (s *DashboardService) ApplyParams(params map[string]string) error {
	for key, value := range params {
		validate, ok := editableParams[key]
		if !ok {
			return fmt.Errorf("parameter %q is not editable", key)
		}
		if validate != nil && value != "" {
			if err := validate(value); err != nil {
				return fmt.Errorf("parameter %q: %w", key, err)
			}
		}
	}
	for key, value := range params {
		if err := s.settings.Set(key, value); err != nil {
			return err
		}
	}
	log.Info().Int("params", len(params)).Msg("Dashboard parameters updated")
	return nil
}

// CheckCredits runs an on-demand credit verification.
func (s *DashboardService) CheckCredits() CreditStatus {
	return s.guard.Check()
}

// SwitchAccount flips the gateway between the primary and backup WhatsApp
// lines, repointing account id and phone together.
func (s *DashboardService) SwitchAccount() (string, error) {
	current := s.settings.Get(settings.KeyWhatsAppActiveAccount, "primary")

	var target, targetID, targetPhone string
	if current == "primary" {
		target = "backup"
		targetID = s.settings.Get(settings.KeyWhatsAppBackupUniqueID, "")
		targetPhone = s.settings.Get(settings.KeyWhatsAppBackupPhone, "")
	} else {
		target = "primary"
		targetID = s.settings.Get(settings.KeyWhatsAppPrimaryUniqueID, "")
		targetPhone = s.settings.Get(settings.KeyWhatsAppPrimaryPhone, "")
	}
	if targetID == "" {
		return "", fmt.Errorf("no %s account configured", target)
	}

	for key, value := range map[string]string{
		settings.KeyWhatsAppAccountID:     targetID,
		settings.KeyWhatsAppAccountPhone:  targetPhone,
		settings.KeyWhatsAppActiveAccount: target,
	} {
		if err := s.settings.Set(key, value); err != nil {
			return "", err
		}
	}
	log.Info().Str("account", target).Msg("WhatsApp account switched")
	return target, nil
}

func validateHHMM(v string) error {
	if !hhmmPattern.MatchString(v) {
		return fmt.Errorf("%q is not a valid HH:MM time", v)
	}
	return nil
}

func validateBool(v string) error {
	switch v {
	case "true", "false", "1", "0", "yes", "no", "on", "off":
		return nil
	}
	return fmt.Errorf("%q is not a boolean", v)
}

func validateInt(v string) error {
	if _, err := strconv.Atoi(v); err != nil {
		return fmt.Errorf("%q is not an integer", v)
	}
	return nil
}

func validateFloat(v string) error {
	if _, err := strconv.ParseFloat(v, 64); err != nil {
		return fmt.Errorf("%q is not a number", v)
	}
	return nil
}

var mmddPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)

func validateHolidays(v string) error {
	for _, part := range regexp.MustCompile(`\s*,\s*`).Split(v, -1) {
		if part == "" {
			continue
		}
		if !mmddPattern.MatchString(part) {
			return fmt.Errorf("%q is not a valid MM-DD date", part)
		}
	}
	return nil
}
