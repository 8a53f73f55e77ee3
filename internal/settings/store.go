package settings

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"glenda/internal/models"
)

// Recognized parameter keys. Anything else is stored verbatim but has no
// engine-level meaning.
const (
	KeyDryRun              = "dry_run"
	KeyActiveDB            = "active_db"
	KeyCreditsOK           = "credits_ok"
	KeyWASendsThreshold    = "wa_sends_threshold"
	KeyClaudeSpendLimitUSD = "claude_spend_limit_usd"
	KeyClaudeInputRate     = "claude_input_rate"
	KeyClaudeOutputRate    = "claude_output_rate"

	KeyScheduleWeekdayStart = "schedule_weekday_start"
	KeyScheduleWeekdayEnd   = "schedule_weekday_end"
	KeyScheduleWeekendStart = "schedule_weekend_start"
	KeyScheduleWeekendEnd   = "schedule_weekend_end"
	KeyHolidays             = "holidays"

	KeyAgentDisplayName       = "agent_display_name"
	KeyInstitutionDisplayName = "institution_display_name"
	KeyWhatsAppSendInterval   = "whatsapp_send_interval"

	KeyWhatsAppAccountID       = "whatsapp_account_id"
	KeyWhatsAppAccountPhone    = "whatsapp_account_phone"
	KeyWhatsAppActiveAccount   = "whatsapp_active_account"
	KeyWhatsAppPrimaryPhone    = "whatsapp_primary_phone"
	KeyWhatsAppBackupPhone     = "whatsapp_backup_phone"
	KeyWhatsAppPrimaryUniqueID = "whatsapp_primary_unique_id"
	KeyWhatsAppBackupUniqueID  = "whatsapp_backup_unique_id"

	KeyVerificationEmailFrom = "verification_email_from"
	KeyEscalationEmailFrom   = "escalation_email_from"
	KeyEscalationEmailTo     = "escalation_email_to"

	KeyPollEnabled    = "cron_poll_enabled"
	KeyTimeoutEnabled = "cron_timeout_enabled"
	KeyArchiveEnabled = "cron_archive_enabled"
	KeyCreditsEnabled = "cron_credits_enabled"
)

// Schedule defaults, local wall-clock HH:MM.
const (
	defaultWeekdayStart = "06:30"
	defaultWeekdayEnd   = "20:30"
	defaultWeekendStart = "09:30"
	defaultWeekendEnd   = "19:00"
)

const cacheTTL = 30 * time.Second

// Venezuela has no DST; the offset is fixed at UTC-4.
var VenezuelaTZ = time.FixedZone("VET", -4*60*60)

// Store is a typed view over the flat parameter table with a short-lived
// read cache. Writes invalidate the cached entry immediately so the writer
// observes its own update.
type Store struct {
	db    *gorm.DB
	cache *gocache.Cache
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:    db,
		cache: gocache.New(cacheTTL, 2*cacheTTL),
	}
}

// Get returns the raw value for key, or fallback when unset.
func (s *Store) Get(key, fallback string) string {
	if v, ok := s.cache.Get(key); ok {
		return v.(string)
	}
	var p models.Parameter
	err := s.db.Where("key = ?", key).First(&p).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error().Err(err).Str("key", key).Msg("parameter read failed")
		}
		return fallback
	}
	s.cache.Set(key, p.Value, gocache.DefaultExpiration)
	return p.Value
}

// Set upserts the value for key.
func (s *Store) Set(key, value string) error {
	p := models.Parameter{Key: key, Value: value}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("set parameter %s: %w", key, err)
	}
	s.cache.Set(key, value, gocache.DefaultExpiration)
	return nil
}

// GetBool treats "1", "true", "yes" and "on" as true, case-insensitively.
func (s *Store) GetBool(key string, fallback bool) bool {
	v := s.Get(key, "")
	if v == "" {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func (s *Store) SetBool(key string, value bool) error {
	if value {
		return s.Set(key, "true")
	}
	return s.Set(key, "false")
}

func (s *Store) GetInt(key string, fallback int) int {
	v := strings.TrimSpace(s.Get(key, ""))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s *Store) GetFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(s.Get(key, ""))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// DryRun reports whether outbound side effects are stubbed.
func (s *Store) DryRun() bool { return s.GetBool(KeyDryRun, false) }

// CreditsOK reports the last verdict of the credit guard. Defaults to true
// so a fresh install is not silently dead.
func (s *Store) CreditsOK() bool { return s.GetBool(KeyCreditsOK, true) }

// ActiveDBMatches reports whether this instance is the designated active one.
// An unset active_db parameter allows everyone.
func (s *Store) ActiveDBMatches(databaseID string) bool {
	active := strings.TrimSpace(s.Get(KeyActiveDB, ""))
	return active == "" || active == databaseID
}

// Holidays returns the configured MM-DD holiday dates.
func (s *Store) Holidays() []string {
	raw := s.Get(KeyHolidays, "")
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ScheduleWindow returns the send window applying at t, already shifted to
// Venezuelan wall-clock time. Weekends and holidays share the reduced window.
func (s *Store) ScheduleWindow(t time.Time) (start, end string) {
	local := t.In(VenezuelaTZ)
	monthDay := local.Format("01-02")
	holiday := false
	for _, h := range s.Holidays() {
		if h == monthDay {
			holiday = true
			break
		}
	}
	wd := local.Weekday()
	if holiday || wd == time.Saturday || wd == time.Sunday {
		return s.Get(KeyScheduleWeekendStart, defaultWeekendStart),
			s.Get(KeyScheduleWeekendEnd, defaultWeekendEnd)
	}
	return s.Get(KeyScheduleWeekdayStart, defaultWeekdayStart),
		s.Get(KeyScheduleWeekdayEnd, defaultWeekdayEnd)
}

// InSchedule reports whether t falls inside the active send window.
// HH:MM strings compare lexicographically, which matches chronological
// order for zero-padded 24h times.
func (s *Store) InSchedule(t time.Time) bool {
	start, end := s.ScheduleWindow(t)
	now := t.In(VenezuelaTZ).Format("15:04")
	return now >= start && now <= end
}
