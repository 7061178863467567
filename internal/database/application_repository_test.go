package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var applicationRowColumns = []string{
	"id", "phone", "current_step", "status", "data",
	"phone_verified", "email_verified", "pan_verified", "aadhaar_verified",
	"aadhaar_transaction_id", "outlet_code", "field_coach_id",
	"submitted_at", "approved_at", "rejection_reason", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return Wrap(db), mock
}

func applicationRow(id uuid.UUID, phone string, step int, status models.ApplicationStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(applicationRowColumns).AddRow(
		id.String(), phone, step, string(status), []byte(`{"full_name":"Asha Rao","role":"crew"}`),
		true, false, false, false,
		nil, "BLR01", nil,
		nil, nil, nil, now, now,
	)
}

func TestApplicationRepository_GetByPhone(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM onboarding_applications WHERE phone = \$1`).
			WithArgs("9876543210").
			WillReturnRows(applicationRow(id, "9876543210", 3, models.StatusDraft))

		app, err := repo.GetByPhone(ctx, "9876543210")
		require.NoError(t, err)
		require.NotNil(t, app)
		assert.Equal(t, id, app.ID)
		assert.Equal(t, 3, app.CurrentStep)
		assert.Equal(t, "Asha Rao", app.Data.FullName)
		assert.True(t, app.PhoneVerified)
		require.NotNil(t, app.OutletCode)
		assert.Equal(t, "BLR01", *app.OutletCode)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM onboarding_applications WHERE phone = \$1`).
			WithArgs("9000000000").
			WillReturnError(sql.ErrNoRows)

		app, err := repo.GetByPhone(ctx, "9000000000")
		require.NoError(t, err)
		assert.Nil(t, app)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM onboarding_applications`).
			WillReturnError(fmt.Errorf("connection reset"))

		_, err := repo.GetByPhone(ctx, "9876543210")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get application")
	})
}

func TestApplicationRepository_UpsertDraft(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()
	outlet := "BLR01"

	t.Run("Saved", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery(`INSERT INTO onboarding_applications (.+) ON CONFLICT \(phone\) DO UPDATE SET current_step = GREATEST`).
			WithArgs(sqlmock.AnyArg(), "9876543210", 2, sqlmock.AnyArg(), &outlet, nil).
			WillReturnRows(applicationRow(id, "9876543210", 2, models.StatusDraft))

		app, err := repo.UpsertDraft(ctx, "9876543210", 2, models.ApplicationData{FullName: "Asha Rao"}, &outlet, nil)
		require.NoError(t, err)
		require.NotNil(t, app)
		assert.Equal(t, 2, app.CurrentStep)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No Longer Draft", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO onboarding_applications`).
			WillReturnRows(sqlmock.NewRows(applicationRowColumns))

		app, err := repo.UpsertDraft(ctx, "9876543210", 6, models.ApplicationData{}, nil, nil)
		require.NoError(t, err)
		assert.Nil(t, app)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApplicationRepository_TransitionStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectExec(`UPDATE onboarding_applications SET status = \$3`).
		WithArgs(id, "draft", "submitted", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.TransitionStatus(ctx, nil, id, models.StatusDraft, models.StatusSubmitted, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`UPDATE onboarding_applications SET status = \$3`).
		WithArgs(id, "draft", "submitted", nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.TransitionStatus(ctx, nil, id, models.StatusDraft, models.StatusSubmitted, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_SetAadhaarTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db)
	id := uuid.New()

	mock.ExpectExec(`UPDATE onboarding_applications SET aadhaar_transaction_id = \$2, aadhaar_verified = false`).
		WithArgs(id, "digilocker_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetAadhaarTransaction(context.Background(), id, "digilocker_1"))

	mock.ExpectExec(`UPDATE onboarding_applications SET aadhaar_transaction_id`).
		WithArgs(id, "digilocker_2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.SetAadhaarTransaction(context.Background(), id, "digilocker_2")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM onboarding_applications WHERE status = \$1 AND outlet_code = ANY\(\$2\)`).
		WithArgs("submitted", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery(`SELECT id, phone, (.+) LIMIT \$3 OFFSET \$4`).
		WithArgs("submitted", sqlmock.AnyArg(), 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "phone", "full_name", "role", "outlet_code", "current_step", "status", "submitted_at", "updated_at",
		}).AddRow(uuid.New().String(), "9876543210", "Asha Rao", "crew", "BLR01", 6, "submitted", now, now))

	items, total, err := repo.List(context.Background(), models.ApplicationFilter{
		Status:      models.StatusSubmitted,
		OutletCodes: []string{"BLR01"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Asha Rao", items[0].FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationFilterClause(t *testing.T) {
	where, args := applicationFilterClause(models.ApplicationFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = applicationFilterClause(models.ApplicationFilter{Search: "asha", OutletCode: "BLR01"})
	assert.Equal(t, " WHERE outlet_code = $1 AND (phone ILIKE $2 OR data->>'full_name' ILIKE $2)", where)
	assert.Equal(t, []interface{}{"BLR01", "%asha%"}, args)
}

func TestApplicationRepository_CountByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) AS count FROM onboarding_applications`).
		WithArgs(nil).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("draft", 4).
			AddRow("active", 9))

	counts, err := repo.CountByStatus(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, counts[models.StatusDraft])
	assert.Equal(t, 9, counts[models.StatusActive])
	assert.NoError(t, mock.ExpectationsWereMet())
}
