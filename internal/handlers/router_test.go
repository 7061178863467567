package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	fixedTime    = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	staffColumns = []string{
		"id", "email", "password_hash", "full_name", "role", "outlet_codes",
		"is_active", "last_login_at", "created_at", "updated_at", "created_by",
	}
)

type routerFixture struct {
	router *gin.Engine
	mock   sqlmock.Sqlmock
}

// newRouterFixture mounts the API with only the auth service backed by sqlmock.
// Routes reaching other services are not exercised here.
func newRouterFixture(t *testing.T) *routerFixture {
	db, mock := newMockDB(t)
	logger := quietLogger()
	jwtService := newJWT()

	auth := services.NewAuthService(
		database.NewUserRepository(db),
		database.NewRefreshTokenRepository(db),
		jwtService,
		bcrypt.MinCost,
		logger,
	)
	audit := services.NewAuditService(db, false)

	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), Handlers{
		Auth:          NewAuthHandler(auth, audit, logger),
		Onboarding:    NewOnboardingHandler(nil, logger),
		Identity:      NewIdentityHandler(nil, logger),
		Documents:     NewDocumentHandler(nil, logger),
		Approvals:     NewApprovalHandler(nil, logger),
		Staff:         NewStaffHandler(nil, audit, logger),
		Organization:  NewOrganizationHandler(nil, logger),
		Deactivations: NewDeactivationHandler(nil, logger),
		Dashboard:     NewDashboardHandler(nil, logger),
	}, jwtService)

	return &routerFixture{router: router, mock: mock}
}

func staffToken(t *testing.T, role models.StaffRole, outlets ...string) string {
	t.Helper()
	token, err := newJWT().GenerateAccessToken(uuid.New(), string(role)+"@crewhire.example", string(role), outlets)
	require.NoError(t, err)
	return token
}

func candidateToken(t *testing.T, phone string) string {
	t.Helper()
	token, err := newJWT().GenerateCandidateToken(phone)
	require.NoError(t, err)
	return token
}

func TestRoutes_Guards(t *testing.T) {
	f := newRouterFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   string
	}{
		{"staff list without token", http.MethodGet, "/api/v1/onboarding", "", http.StatusUnauthorized, "MISSING_AUTH_HEADER"},
		{"staff list with candidate token", http.MethodGet, "/api/v1/onboarding", candidateToken(t, "9876543210"), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"draft with staff token", http.MethodGet, "/api/v1/onboarding/draft/9876543210", staffToken(t, models.RoleSuperAdmin), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"users as manager", http.MethodGet, "/api/v1/admin/users", staffToken(t, models.RoleStoreManager, "BLR-001"), http.StatusForbidden, "INSUFFICIENT_PERMISSIONS"},
		{"create outlet as coach", http.MethodPost, "/api/v1/outlets", staffToken(t, models.RoleFieldCoach), http.StatusForbidden, "INSUFFICIENT_PERMISSIONS"},
		{"request approval as coach", http.MethodPost, "/api/v1/onboarding/" + uuid.NewString() + "/request-approval", staffToken(t, models.RoleFieldCoach), http.StatusForbidden, "INSUFFICIENT_PERMISSIONS"},
		{"resolve deactivation as manager", http.MethodPost, "/api/v1/deactivation-requests/" + uuid.NewString() + "/resolve", staffToken(t, models.RoleStoreManager, "BLR-001"), http.StatusForbidden, "INSUFFICIENT_PERMISSIONS"},
		{"upload without token", http.MethodPost, "/api/v1/onboarding/" + uuid.NewString() + "/upload", "", http.StatusUnauthorized, "MISSING_AUTH_HEADER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(f.router, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestGetDraft_PhoneMismatch(t *testing.T) {
	f := newRouterFixture(t)

	w := doJSON(f.router, http.MethodGet, "/api/v1/onboarding/draft/9123456780", candidateToken(t, "9876543210"), nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "PHONE_MISMATCH", decodeError(t, w).Code)
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		f := newRouterFixture(t)
		f.mock.ExpectQuery(`FROM staff_users WHERE LOWER\(email\) = LOWER\(\$1\)`).
			WithArgs("coach@crewhire.example").
			WillReturnRows(sqlmock.NewRows(staffColumns).AddRow(
				userID.String(), "coach@crewhire.example", string(hash), "Anita Rao", "field_coach",
				[]byte("{BLR-001}"), true, nil, fixedTime, fixedTime, nil,
			))
		f.mock.ExpectExec(`INSERT INTO staff_refresh_tokens`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		f.mock.ExpectExec(`UPDATE staff_users SET last_login_at`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := doJSON(f.router, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
			Email:    "coach@crewhire.example",
			Password: "correct-horse",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.NotContains(t, w.Body.String(), "password_hash")

		var resp models.LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, userID, resp.User.ID)

		claims, err := newJWT().ValidateAccessToken(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "field_coach", claims.Role)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Wrong Password", func(t *testing.T) {
		f := newRouterFixture(t)
		f.mock.ExpectQuery(`FROM staff_users`).
			WillReturnRows(sqlmock.NewRows(staffColumns).AddRow(
				userID.String(), "coach@crewhire.example", string(hash), "Anita Rao", "field_coach",
				[]byte("{BLR-001}"), true, nil, fixedTime, fixedTime, nil,
			))

		w := doJSON(f.router, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
			Email:    "coach@crewhire.example",
			Password: "battery-staple",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "INVALID_CREDENTIALS", decodeError(t, w).Code)
	})

	t.Run("Missing Fields", func(t *testing.T) {
		f := newRouterFixture(t)

		w := doJSON(f.router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{})
		require.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeError(t, w)
		assert.Contains(t, resp.Fields, "email")
		assert.Contains(t, resp.Fields, "password")
	})
}

func TestMe(t *testing.T) {
	f := newRouterFixture(t)
	userID := uuid.New()
	token, err := newJWT().GenerateAccessToken(userID, "manager@crewhire.example", "store_manager", []string{"BLR-001"})
	require.NoError(t, err)

	f.mock.ExpectQuery(`FROM staff_users WHERE id = \$1`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(staffColumns).AddRow(
			userID.String(), "manager@crewhire.example", "bcrypt-digest-value", "Vikram Shetty", "store_manager",
			[]byte("{BLR-001,BLR-002}"), true, nil, fixedTime, fixedTime, nil,
		))

	w := doJSON(f.router, http.MethodGet, "/api/v1/auth/me", token, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.Contains(w.Body.String(), "BLR-002"))
	assert.NotContains(t, w.Body.String(), "bcrypt-digest-value")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
