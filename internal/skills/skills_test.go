package skills

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"glenda/internal/models"
	"glenda/internal/settings"
)

func newTestDB(t *testing.T) (*gorm.DB, *settings.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Parameter{}, &models.Note{},
		&models.Contact{}, &models.BounceLog{}, &models.Invoice{},
		&models.Employee{}, &models.EmployeeAttachment{},
		&models.HRDataCollectionRequest{},
		&models.Conversation{}, &models.Message{}, &models.MessageAttachment{},
	))
	return db, settings.NewStore(db)
}

func createBounceFixture(t *testing.T, db *gorm.DB) (*models.Conversation, *models.BounceLog, *models.Contact) {
	t.Helper()
	contact := &models.Contact{Name: "María Pérez", Email: "viejo@example.com;otro@example.com"}
	require.NoError(t, db.Create(contact).Error)
	bounce := &models.BounceLog{ContactID: contact.ID, BouncedEmail: "viejo@example.com", State: models.BounceStateContacted}
	require.NoError(t, db.Create(bounce).Error)
	conv := &models.Conversation{
		SkillCode:   models.SkillBounceResolution,
		ContactID:   contact.ID,
		Phone:       "+58 414 1234567",
		State:       models.StateWaiting,
		SourceModel: models.SourceBounceLog,
		SourceID:    bounce.ID,
	}
	require.NoError(t, db.Create(conv).Error)
	return conv, bounce, contact
}

func TestBounceProcessNewEmail(t *testing.T) {
	db, st := newTestDB(t)
	skill := NewBounceResolution(db, st)
	conv, _, _ := createBounceFixture(t, db)

	action, err := skill.ProcessAIResponse(conv, "¡Perfecto, actualizado!\nRESOLVED:Nuevo@Example.com")
	require.NoError(t, err)
	assert.True(t, action.Resolve)
	assert.Equal(t, "nuevo@example.com", action.ResolutionData["new_email"])
	assert.Equal(t, "nuevo@example.com", action.VerificationEmail)
	assert.Equal(t, "¡Perfecto, actualizado!", action.Message)

	require.NoError(t, skill.OnResolve(conv, action))

	var contact models.Contact
	require.NoError(t, db.First(&contact, conv.ContactID).Error)
	assert.Equal(t, "nuevo@example.com;otro@example.com", contact.Email)

	var bounce models.BounceLog
	require.NoError(t, db.First(&bounce, conv.SourceID).Error)
	assert.Equal(t, models.BounceStateResolved, bounce.State)
	assert.Equal(t, "nuevo@example.com", bounce.NewEmail)
	assert.NotNil(t, bounce.ResolvedDate)
}

func TestBounceProcessRemoveOnly(t *testing.T) {
	db, st := newTestDB(t)
	skill := NewBounceResolution(db, st)
	conv, _, _ := createBounceFixture(t, db)

	action, err := skill.ProcessAIResponse(conv, "RESOLVED:REMOVE_ONLY")
	require.NoError(t, err)
	assert.True(t, action.Resolve)
	assert.NotEmpty(t, action.Message, "farewell substitutes an empty visible reply")

	require.NoError(t, skill.OnResolve(conv, action))

	var contact models.Contact
	require.NoError(t, db.First(&contact, conv.ContactID).Error)
	assert.Equal(t, "otro@example.com", contact.Email)
}

func TestBounceProcessRestoreKeepsEmail(t *testing.T) {
	db, st := newTestDB(t)
	skill := NewBounceResolution(db, st)
	conv, _, _ := createBounceFixture(t, db)

	action, err := skill.ProcessAIResponse(conv, "Gracias por confirmar.\nRESOLVED:RESTORE")
	require.NoError(t, err)
	require.NoError(t, skill.OnResolve(conv, action))

	var contact models.Contact
	require.NoError(t, db.First(&contact, conv.ContactID).Error)
	assert.Equal(t, "viejo@example.com;otro@example.com", contact.Email)
}

func TestBounceProcessUnknownTokenKeepsConversationOpen(t *testing.T) {
	db, st := newTestDB(t)
	skill := NewBounceResolution(db, st)
	conv, _, _ := createBounceFixture(t, db)

	action, err := skill.ProcessAIResponse(conv, "Entendido, gracias.\nRESOLVED:MAYBE_LATER")
	require.NoError(t, err)
	assert.False(t, action.Resolve)
	assert.Empty(t, action.ResolutionToken)
	assert.Equal(t, "Entendido, gracias.", action.Message)
}

func TestBounceEscalationWithoutResolution(t *testing.T) {
	db, st := newTestDB(t)
	skill := NewBounceResolution(db, st)
	conv, _, _ := createBounceFixture(t, db)

	action, err := skill.ProcessAIResponse(conv, "Con gusto paso su caso.\nACTION:ESCALATE:pide hablar con administración")
	require.NoError(t, err)
	assert.False(t, action.Resolve)
	assert.True(t, action.Escalate)
	assert.Equal(t, "pide hablar con administración", action.EscalationReason)
}

func TestBillReminderTokens(t *testing.T) {
	db, st := newTestDB(t)
	skill := NewBillReminder(db, st)

	contact := &models.Contact{Name: "Juan Rodríguez"}
	require.NoError(t, db.Create(contact).Error)
	invoice := &models.Invoice{ContactID: contact.ID, Name: "FAC/2026/0042", AmountResidual: 120, Currency: "USD", PaymentState: "not_paid"}
	require.NoError(t, db.Create(invoice).Error)
	conv := &models.Conversation{
		SkillCode: models.SkillBillReminder, ContactID: contact.ID,
		SourceModel: models.SourceInvoice, SourceID: invoice.ID, State: models.StateWaiting,
	}
	require.NoError(t, db.Create(conv).Error)

	action, err := skill.ProcessAIResponse(conv, "¡Excelente, gracias!\nRESOLVED:PAID")
	require.NoError(t, err)
	assert.True(t, action.Resolve)
	assert.Equal(t, BillPaid, action.ResolutionToken)

	require.NoError(t, skill.OnResolve(conv, action))
	var note models.Note
	require.NoError(t, db.Where("ref_model = ? AND ref_id = ?", "invoice", invoice.ID).First(&note).Error)
	assert.Contains(t, note.Body, "pagada")

	action, err = skill.ProcessAIResponse(conv, "Entendido.\nRESOLVED:MAYBE")
	require.NoError(t, err)
	assert.False(t, action.Resolve, "an unrecognized token never closes the conversation")
	assert.Equal(t, "Entendido.", action.Message)
}

func TestReminderMessagesAnnounceFinalContact(t *testing.T) {
	db, st := newTestDB(t)
	conv := &models.Conversation{}

	for _, skill := range []Skill{
		NewBounceResolution(db, st),
		NewBillReminder(db, st),
		NewBillingSupport(db, st),
		NewHRDataCollection(db, st),
	} {
		regular := skill.ReminderMessage(conv, false)
		final := skill.ReminderMessage(conv, true)
		assert.NotEqual(t, regular, final, "skill %s", skill.Code())
		assert.Contains(t, final, "último", "skill %s", skill.Code())
		assert.NotContains(t, regular, "último", "skill %s", skill.Code())
	}
}

func createHRFixture(t *testing.T, db *gorm.DB) (*models.Conversation, *models.HRDataCollectionRequest, *models.Employee) {
	t.Helper()
	emp := &models.Employee{Name: "Pedro Gómez", WorkEmail: "pgomez@example.org"}
	require.NoError(t, db.Create(emp).Error)
	req := &models.HRDataCollectionRequest{EmployeeID: emp.ID, State: models.HRRequestInProgress}
	require.NoError(t, db.Create(req).Error)
	conv := &models.Conversation{
		SkillCode: models.SkillHRDataCollection, ContactID: 0,
		SourceModel: models.SourceHRRequest, SourceID: req.ID, State: models.StateWaiting,
	}
	require.NoError(t, db.Create(conv).Error)
	return conv, req, emp
}

func TestHRPhaseCompletionPersistsImmediately(t *testing.T) {
	db, st := newTestDB(t)
	skill := NewHRDataCollection(db, st)
	conv, _, _ := createHRFixture(t, db)

	raw := "Anotado su teléfono.\nACTION:PHASE_COMPLETE:phone:0414 123 45 67"
	action, err := skill.ProcessAIResponse(conv, raw)
	require.NoError(t, err)
	assert.False(t, action.Resolve)

	var req models.HRDataCollectionRequest
	require.NoError(t, db.First(&req, conv.SourceID).Error)
	assert.True(t, req.PhonePhaseDone)
	assert.Equal(t, "+58 414 1234567", req.PhoneValue)
	assert.Equal(t, 1, req.PhasesCompleted())
	assert.Equal(t, 20, req.Progress())
}

func TestHRPhaseValuesAreValidated(t *testing.T) {
	db, st := newTestDB(t)
	skill := NewHRDataCollection(db, st)
	conv, _, _ := createHRFixture(t, db)

	raw := "Anotado.\n" +
		"ACTION:PHASE_COMPLETE:phone:banana\n" +
		"ACTION:PHASE_COMPLETE:cedula_expiry:13/2035\n" +
		"ACTION:PHASE_COMPLETE:rif_number:X-99\n" +
		"ACTION:PHASE_COMPLETE:rif_expiry:junio 2035"
	_, err := skill.ProcessAIResponse(conv, raw)
	require.NoError(t, err)

	var req models.HRDataCollectionRequest
	require.NoError(t, db.First(&req, conv.SourceID).Error)
	assert.False(t, req.PhonePhaseDone, "a garbage phone must not complete the phase")
	assert.Empty(t, req.PhoneValue)
	assert.Empty(t, req.CedulaExpiry)
	assert.False(t, req.RIFPhaseDone)
	assert.Empty(t, req.RIFValue)
	assert.Empty(t, req.RIFExpiry)
}

func TestHRCedulaExpiryStoredAsDate(t *testing.T) {
	db, st := newTestDB(t)
	skill := NewHRDataCollection(db, st)
	conv, _, _ := createHRFixture(t, db)

	raw := "Gracias.\nACTION:PHASE_COMPLETE:cedula:V15128008\nACTION:PHASE_COMPLETE:cedula_expiry:06/2035"
	_, err := skill.ProcessAIResponse(conv, raw)
	require.NoError(t, err)

	var req models.HRDataCollectionRequest
	require.NoError(t, db.First(&req, conv.SourceID).Error)
	assert.Equal(t, "2035-06-30", req.CedulaExpiry)
}

func TestHRResolveWritesEmployee(t *testing.T) {
	db, st := newTestDB(t)
	skill := NewHRDataCollection(db, st)
	conv, req, emp := createHRFixture(t, db)

	req.PhonePhaseDone = true
	req.PhoneValue = "04141234567"
	req.CedulaPhaseDone = true
	req.CedulaValue = "v 15.128.008"
	req.CedulaExpiry = "2028-02-29"
	req.RIFPhaseDone = true
	req.RIFValue = "v151280089"
	req.RIFExpiry = "2027-06-30"
	req.AddressPhaseDone = true
	req.AddressValue = "Av. Bolívar, Res. Caroní, Caracas"
	req.EmergencyPhaseDone = true
	req.EmergencyValue = "Ana Gómez;04241112233"
	require.NoError(t, db.Save(req).Error)

	action, err := skill.ProcessAIResponse(conv, "¡Eso era todo!\nRESOLVED:COMPLETED")
	require.NoError(t, err)
	require.True(t, action.Resolve)
	require.NoError(t, skill.OnResolve(conv, action))

	var got models.Employee
	require.NoError(t, db.First(&got, emp.ID).Error)
	assert.Equal(t, "+58 414 1234567", got.MobilePhone)
	assert.Equal(t, "V15128008", got.IdentificationID)
	require.NotNil(t, got.IDExpiryDate)
	assert.Equal(t, time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC), *got.IDExpiryDate)
	assert.Equal(t, "V-15128008-9", got.RIF)
	require.NotNil(t, got.RIFExpiryDate)
	assert.Equal(t, "Av. Bolívar, Res. Caroní, Caracas", got.PrivateStreet)
	assert.Equal(t, "Ana Gómez", got.EmergencyContact)
	assert.Equal(t, "+58 424 1112233", got.EmergencyPhone)

	// Protected fields stay untouched.
	assert.Equal(t, "Pedro Gómez", got.Name)
	assert.Equal(t, "pgomez@example.org", got.WorkEmail)

	var gotReq models.HRDataCollectionRequest
	require.NoError(t, db.First(&gotReq, req.ID).Error)
	assert.Equal(t, models.HRRequestCompleted, gotReq.State)
	assert.NotNil(t, gotReq.CompletedDate)
}

func TestHRResolvePartial(t *testing.T) {
	db, st := newTestDB(t)
	skill := NewHRDataCollection(db, st)
	conv, req, _ := createHRFixture(t, db)

	req.PhonePhaseDone = true
	req.PhoneValue = "04141234567"
	require.NoError(t, db.Save(req).Error)

	action, err := skill.ProcessAIResponse(conv, "RESOLVED:COMPLETED")
	require.NoError(t, err)
	require.NoError(t, skill.OnResolve(conv, action))

	var gotReq models.HRDataCollectionRequest
	require.NoError(t, db.First(&gotReq, req.ID).Error)
	assert.Equal(t, models.HRRequestPartial, gotReq.State)
	assert.Nil(t, gotReq.CompletedDate)
}

func TestHRSaveDocumentFromArchive(t *testing.T) {
	db, st := newTestDB(t)
	skill := NewHRDataCollection(db, st)
	conv, req, emp := createHRFixture(t, db)

	req.CedulaPhaseDone = true
	req.CedulaValue = "V15128008"
	require.NoError(t, db.Save(req).Error)

	msg := &models.Message{
		ConversationID: conv.ID,
		Direction:      models.DirectionInbound,
		AttachmentURL:  "https://gateway.example/media/1",
		AttachmentType: models.AttachmentImage,
		Timestamp:      time.Now().UTC(),
	}
	require.NoError(t, db.Create(msg).Error)
	require.NoError(t, db.Create(&models.MessageAttachment{
		MessageID: msg.ID, Filename: "media", MimeType: "image/jpeg", Data: []byte("jpegbytes"),
	}).Error)

	_, err := skill.ProcessAIResponse(conv, "Recibido, gracias.\nACTION:SAVE_DOCUMENT:cedula")
	require.NoError(t, err)

	var att models.EmployeeAttachment
	require.NoError(t, db.Where("employee_id = ?", emp.ID).First(&att).Error)
	assert.Equal(t, "Cedula - V15128008.jpg", att.Name)
	assert.Equal(t, []byte("jpegbytes"), att.Data)

	var gotReq models.HRDataCollectionRequest
	require.NoError(t, db.First(&gotReq, req.ID).Error)
	assert.True(t, gotReq.CedulaPhotoReceived)
	assert.NotNil(t, gotReq.CedulaPhotoDate)
}

func TestHRSaveDocumentAcceptsPDF(t *testing.T) {
	db, st := newTestDB(t)
	skill := NewHRDataCollection(db, st)
	conv, req, emp := createHRFixture(t, db)

	req.RIFPhaseDone = true
	req.RIFValue = "V-15128008-9"
	require.NoError(t, db.Save(req).Error)

	msg := &models.Message{
		ConversationID: conv.ID,
		Direction:      models.DirectionInbound,
		AttachmentURL:  "https://gateway.example/media/2",
		AttachmentType: models.AttachmentDocument,
		Timestamp:      time.Now().UTC(),
	}
	require.NoError(t, db.Create(msg).Error)
	require.NoError(t, db.Create(&models.MessageAttachment{
		MessageID: msg.ID, Filename: "rif", MimeType: "application/pdf", Data: []byte("%PDF-1.4"),
	}).Error)

	_, err := skill.ProcessAIResponse(conv, "Recibido.\nACTION:SAVE_DOCUMENT:rif")
	require.NoError(t, err)

	var att models.EmployeeAttachment
	require.NoError(t, db.Where("employee_id = ?", emp.ID).First(&att).Error)
	assert.Equal(t, "RIF - V-15128008-9.pdf", att.Name)
	assert.Equal(t, []byte("%PDF-1.4"), att.Data)
}

func TestHRDocumentReceiptRecordedEvenWithoutBinary(t *testing.T) {
	db, st := newTestDB(t)
	skill := NewHRDataCollection(db, st)
	conv, req, emp := createHRFixture(t, db)

	// No inbound media at all; the marker still records the receipt.
	_, err := skill.ProcessAIResponse(conv, "Recibida la foto, gracias.\nACTION:SAVE_DOCUMENT:cedula")
	require.NoError(t, err)

	var gotReq models.HRDataCollectionRequest
	require.NoError(t, db.First(&gotReq, req.ID).Error)
	assert.True(t, gotReq.CedulaPhotoReceived)

	var count int64
	require.NoError(t, db.Model(&models.EmployeeAttachment{}).Where("employee_id = ?", emp.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRegistry(t *testing.T) {
	db, st := newTestDB(t)
	reg := NewRegistry(
		NewBounceResolution(db, st),
		NewBillReminder(db, st),
		NewBillingSupport(db, st),
		NewHRDataCollection(db, st),
	)

	s, err := reg.Get(models.SkillBounceResolution)
	require.NoError(t, err)
	assert.Equal(t, models.SkillBounceResolution, s.Code())

	_, err = reg.Get("nope")
	assert.Error(t, err)
	assert.Len(t, reg.Codes(), 4)
}
