package services

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"glenda/internal/adapters/mailer"
	"glenda/internal/events"
	"glenda/internal/models"
	"glenda/internal/settings"
)

// Default rates in USD per token and the default thresholds.
const (
	defaultInputRate      = 0.000001
	defaultOutputRate     = 0.000005
	defaultSendsThreshold = 100
	defaultSpendLimitUSD  = 50.0
)

// CreditStatus is one credit check verdict with its inputs.
type CreditStatus struct {
	OK                bool
	WhatsAppRemaining int
	SendsThreshold    int
	SpendUSD          float64
	SpendLimitUSD     float64
	Err               string
}

// CreditGuard is the kill switch: it compares remaining gateway sends and
// accumulated model spend against their limits and flips the credits_ok
// flag the scheduler gate reads. Any fetch error counts as not OK.
type CreditGuard struct {
	db       *gorm.DB
	settings *settings.Store
	gateway  WhatsAppGateway
	mail     Mailer
	events   *events.Publisher
}

func NewCreditGuard(db *gorm.DB, st *settings.Store, gateway WhatsAppGateway, mail Mailer, publisher *events.Publisher) *CreditGuard {
	return &CreditGuard{db: db, settings: st, gateway: gateway, mail: mail, events: publisher}
}

// Spend computes the accumulated model cost in USD from per-message token
// counters and the configured rates.
func (g *CreditGuard) Spend() (float64, error) {
	var totals struct {
		Input  int64
		Output int64
	}
	err := g.db.Model(&models.Message{}).
		Select("COALESCE(SUM(ai_input_tokens),0) AS input, COALESCE(SUM(ai_output_tokens),0) AS output").
		Scan(&totals).Error
	if err != nil {
		return 0, fmt.Errorf("sum token usage: %w", err)
	}
	inRate := g.settings.GetFloat(settings.KeyClaudeInputRate, defaultInputRate)
	outRate := g.settings.GetFloat(settings.KeyClaudeOutputRate, defaultOutputRate)
	return float64(totals.Input)*inRate + float64(totals.Output)*outRate, nil
}

// Check runs one credit verification and persists the verdict. On the
// true-to-false edge an alert email goes out; recovery is automatic and
// silent.
func (g *CreditGuard) Check() CreditStatus {
	status := CreditStatus{
		SendsThreshold: g.settings.GetInt(settings.KeyWASendsThreshold, defaultSendsThreshold),
		SpendLimitUSD:  g.settings.GetFloat(settings.KeyClaudeSpendLimitUSD, defaultSpendLimitUSD),
	}

	sub, err := g.gateway.Subscription()
	if err != nil {
		status.Err = err.Error()
		log.Error().Err(err).Msg("Credit check: subscription fetch failed")
	} else {
		status.WhatsAppRemaining = sub.Remaining()
	}

	spend, err := g.Spend()
	if err != nil {
		status.Err = err.Error()
		log.Error().Err(err).Msg("Credit check: spend computation failed")
	}
	status.SpendUSD = spend

	status.OK = status.Err == "" &&
		status.WhatsAppRemaining >= status.SendsThreshold &&
		status.SpendUSD < status.SpendLimitUSD

	wasOK := g.settings.CreditsOK()
	if err := g.settings.SetBool(settings.KeyCreditsOK, status.OK); err != nil {
		log.Error().Err(err).Msg("Could not persist credits_ok")
	}

	if wasOK && !status.OK {
		g.alert(status)
		g.events.Publish(events.CreditsChanged, 0, map[string]any{"ok": false})
		log.Warn().Int("waRemaining", status.WhatsAppRemaining).Float64("spendUSD", status.SpendUSD).Msg("Credits exhausted, outbound activity halted")
	} else if !wasOK && status.OK {
		g.events.Publish(events.CreditsChanged, 0, map[string]any{"ok": true})
		log.Info().Msg("Credits recovered, outbound activity resumed")
	}

	return status
}

func (g *CreditGuard) alert(status CreditStatus) {
	to := g.settings.Get(settings.KeyEscalationEmailTo, "")
	if to == "" || g.mail == nil || g.settings.DryRun() {
		return
	}
	body := fmt.Sprintf(
		"<p>El motor de conversaciones se detuvo por falta de créditos.</p>"+
			"<ul><li>Envíos de WhatsApp restantes: %d (mínimo %d)</li>"+
			"<li>Gasto de AI acumulado: %.2f USD (límite %.2f USD)</li></ul>",
		status.WhatsAppRemaining, status.SendsThreshold, status.SpendUSD, status.SpendLimitUSD)
	if status.Err != "" {
		body += fmt.Sprintf("<p>Error durante la verificación: %s</p>", status.Err)
	}
	err := g.mail.Send(mailer.Email{
		From:     g.settings.Get(settings.KeyEscalationEmailFrom, ""),
		To:       strings.Split(to, ","),
		Subject:  "Alerta: créditos agotados",
		BodyHTML: body,
	})
	if err != nil {
		log.Error().Err(err).Msg("Credit alert email failed")
	}
}
