package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/pkg/validator"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var deactivationColumns = []string{
	"id", "application_id", "requested_by", "kind", "reason", "status",
	"resolved_by", "resolution_note", "outlet_code", "created_at", "resolved_at",
}

func newDeactivationFixture(t *testing.T) (*DeactivationService, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	service := NewDeactivationService(
		db,
		database.NewApplicationRepository(db),
		database.NewDeactivationRepository(db),
		NewScopeResolver(database.NewOutletRepository(db)),
		NewAuditService(db, false),
	)
	return service, mock
}

func deactivationRow(id, appID uuid.UUID, kind models.DeactivationKind, status models.RequestStatus, outlet string) *sqlmock.Rows {
	return sqlmock.NewRows(deactivationColumns).AddRow(
		id.String(), appID.String(), uuid.New().String(), string(kind), "Absconding", string(status),
		nil, nil, outlet, fixedNow, nil,
	)
}

func TestDeactivationService_Create(t *testing.T) {
	ctx := context.Background()
	manager := Actor{UserID: uuid.New(), Role: models.RoleStoreManager, OutletCodes: []string{"BLR-001"}}

	t.Run("Active Employee", func(t *testing.T) {
		service, mock := newDeactivationFixture(t)
		app := newApp(models.StatusActive)

		mock.ExpectQuery(`FROM onboarding_applications WHERE id = \$1`).WillReturnRows(appRows(t, app))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE onboarding_applications`).
			WithArgs(app.ID, "active", "deactivation_pending", nil).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO deactivation_requests`).
			WithArgs(sqlmock.AnyArg(), app.ID, manager.UserID, "termination", "Repeated no-shows", "pending").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(fixedNow))
		mock.ExpectCommit()

		req, err := service.Create(ctx, manager, models.CreateDeactivationRequest{
			ApplicationID: app.ID, Kind: models.KindTermination, Reason: " Repeated no-shows ",
		}, testRC)
		require.NoError(t, err)
		assert.Equal(t, models.RequestPending, req.Status)
		assert.Equal(t, "Repeated no-shows", req.Reason)
		assert.Equal(t, fixedNow, req.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Yet Active", func(t *testing.T) {
		service, mock := newDeactivationFixture(t)
		app := newApp(models.StatusApproved)
		mock.ExpectQuery(`FROM onboarding_applications WHERE id = \$1`).WillReturnRows(appRows(t, app))

		_, err := service.Create(ctx, manager, models.CreateDeactivationRequest{
			ApplicationID: app.ID, Kind: models.KindDeactivation, Reason: "Moving cities",
		}, testRC)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("Validation", func(t *testing.T) {
		service, _ := newDeactivationFixture(t)

		_, err := service.Create(ctx, manager, models.CreateDeactivationRequest{Kind: "fired", Reason: "x"}, testRC)
		var fieldErrs validator.FieldErrors
		require.True(t, errors.As(err, &fieldErrs))
		assert.Contains(t, fieldErrs, "kind")

		_, err = service.Create(ctx, manager, models.CreateDeactivationRequest{Kind: models.KindDeactivation, Reason: "  "}, testRC)
		require.True(t, errors.As(err, &fieldErrs))
		assert.Contains(t, fieldErrs, "reason")
	})

	t.Run("Other Outlet", func(t *testing.T) {
		service, mock := newDeactivationFixture(t)
		app := newApp(models.StatusActive)
		outlet := "DEL-001"
		app.OutletCode = &outlet
		mock.ExpectQuery(`FROM onboarding_applications WHERE id = \$1`).WillReturnRows(appRows(t, app))

		_, err := service.Create(ctx, manager, models.CreateDeactivationRequest{
			ApplicationID: app.ID, Kind: models.KindDeactivation, Reason: "Moving cities",
		}, testRC)
		assert.ErrorIs(t, err, ErrApplicationNotFound)
	})
}

func TestDeactivationService_Resolve(t *testing.T) {
	ctx := context.Background()
	admin := Actor{UserID: uuid.New(), Role: models.RoleSuperAdmin}

	tests := []struct {
		name      string
		kind      models.DeactivationKind
		approve   bool
		reqStatus string
		appStatus string
	}{
		{"approve deactivation", models.KindDeactivation, true, "approved", "deactivated"},
		{"approve termination", models.KindTermination, true, "approved", "terminated"},
		{"reject returns to active", models.KindTermination, false, "rejected", "active"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, mock := newDeactivationFixture(t)
			id, appID := uuid.New(), uuid.New()

			mock.ExpectQuery(`FROM deactivation_requests d(.+)WHERE d.id = \$1`).
				WithArgs(id).
				WillReturnRows(deactivationRow(id, appID, tt.kind, models.RequestPending, "BLR-001"))
			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE deactivation_requests`).
				WithArgs(id, tt.reqStatus, admin.UserID, "Confirmed with outlet").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(`UPDATE onboarding_applications`).
				WithArgs(appID, "deactivation_pending", tt.appStatus, nil).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			got, err := service.Resolve(ctx, admin, id, models.ResolveDeactivationRequest{
				Approve: tt.approve, Note: "Confirmed with outlet",
			}, testRC)
			require.NoError(t, err)
			assert.Equal(t, models.RequestStatus(tt.reqStatus), got.Status)
			assert.Equal(t, admin.UserID, *got.ResolvedBy)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("Already Resolved", func(t *testing.T) {
		service, mock := newDeactivationFixture(t)
		id := uuid.New()
		mock.ExpectQuery(`FROM deactivation_requests`).
			WillReturnRows(deactivationRow(id, uuid.New(), models.KindDeactivation, models.RequestApproved, "BLR-001"))

		_, err := service.Resolve(ctx, admin, id, models.ResolveDeactivationRequest{Approve: true}, testRC)
		assert.ErrorIs(t, err, ErrAlreadyResolved)
	})

	t.Run("Resolved Concurrently", func(t *testing.T) {
		service, mock := newDeactivationFixture(t)
		id := uuid.New()
		mock.ExpectQuery(`FROM deactivation_requests`).
			WillReturnRows(deactivationRow(id, uuid.New(), models.KindDeactivation, models.RequestPending, "BLR-001"))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE deactivation_requests`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := service.Resolve(ctx, admin, id, models.ResolveDeactivationRequest{Approve: true}, testRC)
		assert.ErrorIs(t, err, ErrAlreadyResolved)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown", func(t *testing.T) {
		service, mock := newDeactivationFixture(t)
		mock.ExpectQuery(`FROM deactivation_requests`).WillReturnRows(sqlmock.NewRows(deactivationColumns))

		_, err := service.Resolve(ctx, admin, uuid.New(), models.ResolveDeactivationRequest{}, testRC)
		assert.ErrorIs(t, err, ErrDeactivationNotFound)
	})
}

func TestDeactivationService_List(t *testing.T) {
	service, mock := newDeactivationFixture(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM deactivation_requests d`).
		WithArgs("pending", nil).
		WillReturnRows(deactivationRow(id, uuid.New(), models.KindDeactivation, models.RequestPending, "BLR-001"))

	reqs, err := service.List(context.Background(), Actor{Role: models.RoleSuperAdmin}, models.RequestPending)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, id, reqs[0].ID)

	_, err = service.List(context.Background(), Actor{Role: models.RoleSuperAdmin}, "closed")
	var fieldErrs validator.FieldErrors
	assert.True(t, errors.As(err, &fieldErrs))
}
