package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"glenda/internal/adapters/claude"
	"glenda/internal/adapters/mailer"
	"glenda/internal/adapters/whatsapp"
	"glenda/internal/db"
	"glenda/internal/events"
	"glenda/internal/models"
	"glenda/internal/settings"
	"glenda/internal/skills"
)

type mockGateway struct{ mock.Mock }

func (m *mockGateway) SendMessage(phone, text string) (int64, error) {
	args := m.Called(phone, text)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockGateway) FetchReceived(limit int) ([]whatsapp.ReceivedMessage, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]whatsapp.ReceivedMessage), args.Error(1)
}

func (m *mockGateway) ValidatePhone(phone string) (bool, error) {
	args := m.Called(phone)
	return args.Bool(0), args.Error(1)
}

func (m *mockGateway) Subscription() (*whatsapp.Subscription, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*whatsapp.Subscription), args.Error(1)
}

type mockLLM struct{ mock.Mock }

func (m *mockLLM) Generate(model, system string, messages []claude.Message) (*claude.Reply, error) {
	args := m.Called(model, system, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*claude.Reply), args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) Send(e mailer.Email) error {
	args := m.Called(e)
	return args.Error(0)
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type testEnv struct {
	db       *gorm.DB
	settings *settings.Store
	gateway  *mockGateway
	llm      *mockLLM
	mail     *mockMailer
	clock    *fakeClock
	registry *skills.Registry
	service  *ConversationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(
		&models.Parameter{}, &models.Note{}, &models.Skill{},
		&models.Contact{}, &models.BounceLog{}, &models.Invoice{},
		&models.Employee{}, &models.EmployeeAttachment{},
		&models.HRDataCollectionRequest{},
		&models.Conversation{}, &models.Message{}, &models.MessageAttachment{},
	))
	require.NoError(t, db.SeedSkills(database))

	env := &testEnv{
		db:       database,
		settings: settings.NewStore(database),
		gateway:  &mockGateway{},
		llm:      &mockLLM{},
		mail:     &mockMailer{},
		clock:    &fakeClock{now: time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)},
	}
	env.registry = skills.NewRegistry(
		skills.NewBounceResolution(database, env.settings),
		skills.NewBillReminder(database, env.settings),
		skills.NewBillingSupport(database, env.settings),
		skills.NewHRDataCollection(database, env.settings),
	)
	history := NewHistoryBuilder(database, NewPDFRenderer())
	env.service, err = NewConversationService(
		database, env.settings, env.registry, env.gateway, env.llm, env.mail,
		events.NewPublisher("", ""), history, env.clock)
	require.NoError(t, err)
	return env
}

func (e *testEnv) createBounceConversation(t *testing.T) *models.Conversation {
	t.Helper()
	contact := &models.Contact{Name: "María Pérez", Email: "viejo@example.com"}
	require.NoError(t, e.db.Create(contact).Error)
	bounce := &models.BounceLog{ContactID: contact.ID, BouncedEmail: "viejo@example.com", State: models.BounceStateNew}
	require.NoError(t, e.db.Create(bounce).Error)
	conv, err := e.service.Create(models.SkillBounceResolution, contact.ID, "04141234567", models.SourceBounceLog, bounce.ID)
	require.NoError(t, err)
	return conv
}
