package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"glenda/internal/models"
)

func TestStartRequestHappyPath(t *testing.T) {
	env := newTestEnv(t)
	hr := NewHRCollectionService(env.db, env.service, env.gateway)

	emp := &models.Employee{Name: "Pedro Gómez", MobilePhone: "04141234567"}
	require.NoError(t, env.db.Create(emp).Error)

	env.gateway.On("ValidatePhone", "04141234567").Return(true, nil)
	env.gateway.On("SendMessage", "+58 414 1234567", mock.AnythingOfType("string")).Return(int64(1), nil)

	req, err := hr.StartRequest(emp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HRRequestInProgress, req.State)
	require.NotNil(t, req.ConversationID)

	var conv models.Conversation
	require.NoError(t, env.db.First(&conv, *req.ConversationID).Error)
	assert.Equal(t, models.StateWaiting, conv.State)
	assert.Equal(t, models.SourceHRRequest, conv.SourceModel)
	assert.Equal(t, req.ID, conv.SourceID)
	env.gateway.AssertExpectations(t)
}

func TestStartRequestPreconditions(t *testing.T) {
	env := newTestEnv(t)
	hr := NewHRCollectionService(env.db, env.service, env.gateway)

	_, err := hr.StartRequest(999)
	assert.Error(t, err, "unknown employee")

	noPhone := &models.Employee{Name: "Sin Teléfono"}
	require.NoError(t, env.db.Create(noPhone).Error)
	_, err = hr.StartRequest(noPhone.ID)
	assert.Error(t, err, "employee without mobile phone")

	emp := &models.Employee{Name: "Pedro Gómez", MobilePhone: "04141234567"}
	require.NoError(t, env.db.Create(emp).Error)
	env.gateway.On("ValidatePhone", mock.Anything).Return(true, nil)
	env.gateway.On("SendMessage", mock.Anything, mock.Anything).Return(int64(1), nil)
	_, err = hr.StartRequest(emp.ID)
	require.NoError(t, err)

	_, err = hr.StartRequest(emp.ID)
	assert.Error(t, err, "request already in flight")
}

func TestStartRequestFallsBackToWorkPhone(t *testing.T) {
	env := newTestEnv(t)
	hr := NewHRCollectionService(env.db, env.service, env.gateway)

	emp := &models.Employee{Name: "Pedro Gómez", WorkPhone: "02121234567"}
	require.NoError(t, env.db.Create(emp).Error)
	env.gateway.On("ValidatePhone", "02121234567").Return(true, nil)
	env.gateway.On("SendMessage", "+58 212 1234567", mock.AnythingOfType("string")).Return(int64(1), nil)

	req, err := hr.StartRequest(emp.ID)
	require.NoError(t, err)
	require.NotNil(t, req.ConversationID)

	var conv models.Conversation
	require.NoError(t, env.db.First(&conv, *req.ConversationID).Error)
	assert.Equal(t, "+58 212 1234567", conv.Phone)
	env.gateway.AssertExpectations(t)
}

func TestStartRequestRejectsPhoneWithoutWhatsApp(t *testing.T) {
	env := newTestEnv(t)
	hr := NewHRCollectionService(env.db, env.service, env.gateway)

	emp := &models.Employee{Name: "Pedro Gómez", MobilePhone: "04141234567"}
	require.NoError(t, env.db.Create(emp).Error)
	env.gateway.On("ValidatePhone", "04141234567").Return(false, nil)

	_, err := hr.StartRequest(emp.ID)
	assert.Error(t, err)
	env.gateway.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestCancelRequestClosesConversation(t *testing.T) {
	env := newTestEnv(t)
	hr := NewHRCollectionService(env.db, env.service, env.gateway)

	emp := &models.Employee{Name: "Pedro Gómez", MobilePhone: "04141234567"}
	require.NoError(t, env.db.Create(emp).Error)
	env.gateway.On("ValidatePhone", mock.Anything).Return(true, nil)
	env.gateway.On("SendMessage", mock.Anything, mock.Anything).Return(int64(1), nil)

	req, err := hr.StartRequest(emp.ID)
	require.NoError(t, err)

	require.NoError(t, hr.Cancel(req.ID))

	var gotReq models.HRDataCollectionRequest
	require.NoError(t, env.db.First(&gotReq, req.ID).Error)
	assert.Equal(t, models.HRRequestCancelled, gotReq.State)

	var conv models.Conversation
	require.NoError(t, env.db.First(&conv, *req.ConversationID).Error)
	assert.Equal(t, models.StateResolved, conv.State)

	// Cancelling twice is refused.
	assert.Error(t, hr.Cancel(req.ID))
}
