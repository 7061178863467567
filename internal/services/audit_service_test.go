package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_LogApplicationEvent(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewAuditService(db, true)
	appID := uuid.New()

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(nil, AuditSubmit, "application", appID, "203.0.113.1", "ua", []byte(`{"step":6}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := service.LogApplicationEvent(context.Background(), nil, AuditSubmit, appID, "203.0.113.1", "ua", map[string]interface{}{"step": 6})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_Disabled(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewAuditService(db, false)

	require.NoError(t, service.LogOTPRequest(context.Background(), testPhone, "sms", "", "", true, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}
