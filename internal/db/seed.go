package db

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"glenda/internal/models"
)

const defaultModelName = "claude-haiku-4-5-20251001"

// SeedSkills ensures the shipped skill catalog exists. Existing rows keep
// whatever tuning operators applied; only missing skills are inserted.
func SeedSkills(database *gorm.DB) error {
	seeds := []models.Skill{
		{
			Code:                  models.SkillBounceResolution,
			Name:                  "Resolución de correos rebotados",
			Description:           "Contacta al representante para corregir una dirección de correo que rebota.",
			ModelName:             defaultModelName,
			Active:                true,
			MaxTurns:              6,
			MaxReminders:          2,
			ReminderIntervalHours: 24,
		},
		{
			Code:                  models.SkillBillReminder,
			Name:                  "Recordatorio de factura",
			Description:           "Recuerda amablemente una factura con saldo pendiente.",
			ModelName:             defaultModelName,
			Active:                true,
			MaxTurns:              4,
			MaxReminders:          2,
			ReminderIntervalHours: 24,
		},
		{
			Code:                  models.SkillBillingSupport,
			Name:                  "Soporte de facturación",
			Description:           "Atiende consultas de facturación del representante.",
			ModelName:             defaultModelName,
			Active:                true,
			MaxTurns:              5,
			MaxReminders:          1,
			ReminderIntervalHours: 24,
		},
		{
			Code:                  models.SkillHRDataCollection,
			Name:                  "Actualización de datos de personal",
			Description:           "Recolecta y actualiza los datos personales de un empleado en cinco fases.",
			ModelName:             defaultModelName,
			Active:                true,
			MaxTurns:              30,
			MaxReminders:          2,
			ReminderIntervalHours: 24,
		},
	}

	for _, seed := range seeds {
		var existing models.Skill
		err := database.Where("code = ?", seed.Code).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("check skill %q: %w", seed.Code, err)
		}
		if err := database.Create(&seed).Error; err != nil {
			return fmt.Errorf("seed skill %q: %w", seed.Code, err)
		}
		log.Info().Str("skill", seed.Code).Msg("Skill seeded")
	}
	return nil
}
