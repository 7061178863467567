package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Execer is satisfied by both DB and *sqlx.Tx
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const applicationColumns = `
	id, phone, current_step, status, data,
	phone_verified, email_verified, pan_verified, aadhaar_verified,
	aadhaar_transaction_id, outlet_code, field_coach_id,
	submitted_at, approved_at, rejection_reason, created_at, updated_at`

// ApplicationRepository handles onboarding application database operations
type ApplicationRepository struct {
	db DB
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// GetByPhone returns the application for a phone number, or nil if none exists
func (r *ApplicationRepository) GetByPhone(ctx context.Context, phone string) (*models.Application, error) {
	return r.getOne(ctx, "phone = $1", phone)
}

// GetByID returns the application by ID, or nil if none exists
func (r *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByTransactionID returns the application holding an Aadhaar e-Sign session
func (r *ApplicationRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.Application, error) {
	return r.getOne(ctx, "aadhaar_transaction_id = $1", transactionID)
}

func (r *ApplicationRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.Application, error) {
	var app models.Application
	query := `SELECT ` + applicationColumns + ` FROM onboarding_applications WHERE ` + where

	err := r.db.GetContext(ctx, &app, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return &app, nil
}

// UpsertDraft creates the draft for a phone or updates it while it is still a draft.
// current_step never moves backwards. Returns nil when the record exists but is no longer a draft.
func (r *ApplicationRepository) UpsertDraft(ctx context.Context, phone string, step int, data models.ApplicationData, outletCode *string, fieldCoachID *uuid.UUID) (*models.Application, error) {
	query := `
		INSERT INTO onboarding_applications (
			id, phone, current_step, status, data, outlet_code, field_coach_id, created_at, updated_at
		) VALUES ($1, $2, $3, 'draft', $4, $5, $6, NOW(), NOW())
		ON CONFLICT (phone) DO UPDATE SET
			current_step   = GREATEST(onboarding_applications.current_step, EXCLUDED.current_step),
			data           = EXCLUDED.data,
			outlet_code    = EXCLUDED.outlet_code,
			field_coach_id = EXCLUDED.field_coach_id,
			updated_at     = NOW()
		WHERE onboarding_applications.status = 'draft'
		RETURNING ` + applicationColumns

	var app models.Application
	err := r.db.GetContext(ctx, &app, query, uuid.New(), phone, step, data, outletCode, fieldCoachID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	return &app, nil
}

// MarkPhoneVerified sets phone_verified on the draft for phone, if one exists
func (r *ApplicationRepository) MarkPhoneVerified(ctx context.Context, phone string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE onboarding_applications SET phone_verified = true, updated_at = NOW()
		WHERE phone = $1
	`, phone)
	if err != nil {
		return fmt.Errorf("failed to mark phone verified: %w", err)
	}
	return nil
}

// MarkEmailVerified sets email_verified
func (r *ApplicationRepository) MarkEmailVerified(ctx context.Context, phone string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE onboarding_applications SET email_verified = true, updated_at = NOW()
		WHERE phone = $1
	`, phone)
	if err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	return nil
}

// MarkPANVerified sets pan_verified and records the verified PAN in the document
func (r *ApplicationRepository) MarkPANVerified(ctx context.Context, id uuid.UUID, pan string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE onboarding_applications
		SET pan_verified = true,
		    data = jsonb_set(data, '{pan_number}', to_jsonb($2::text)),
		    updated_at = NOW()
		WHERE id = $1
	`, id, pan)
	if err != nil {
		return fmt.Errorf("failed to mark PAN verified: %w", err)
	}
	return nil
}

// SetAadhaarTransaction records the vendor session for the application.
// A new session resets aadhaar_verified.
func (r *ApplicationRepository) SetAadhaarTransaction(ctx context.Context, id uuid.UUID, transactionID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE onboarding_applications
		SET aadhaar_transaction_id = $2, aadhaar_verified = false, updated_at = NOW()
		WHERE id = $1
	`, id, transactionID)
	if err != nil {
		return fmt.Errorf("failed to store aadhaar transaction: %w", err)
	}
	return requireOneRow(result, "application")
}

// MarkAadhaarVerified sets aadhaar_verified for the application holding transactionID
func (r *ApplicationRepository) MarkAadhaarVerified(ctx context.Context, transactionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE onboarding_applications SET aadhaar_verified = true, updated_at = NOW()
		WHERE aadhaar_transaction_id = $1
	`, transactionID)
	if err != nil {
		return fmt.Errorf("failed to mark aadhaar verified: %w", err)
	}
	return nil
}

// TransitionStatus moves the application from one status to another.
// Returns false when the record is no longer in the expected status.
func (r *ApplicationRepository) TransitionStatus(ctx context.Context, ex Execer, id uuid.UUID, from, to models.ApplicationStatus, reason *string) (bool, error) {
	if ex == nil {
		ex = r.db
	}

	query := `
		UPDATE onboarding_applications
		SET status = $3,
		    submitted_at = CASE WHEN $3 = 'submitted' THEN NOW() ELSE submitted_at END,
		    approved_at = CASE WHEN $3 = 'approved' THEN NOW() ELSE approved_at END,
		    rejection_reason = COALESCE($4, rejection_reason),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := ex.ExecContext(ctx, query, id, string(from), string(to), reason)
	if err != nil {
		return false, fmt.Errorf("failed to update application status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// List returns application summaries matching the filter and the total match count
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationSummary, int, error) {
	where, args := applicationFilterClause(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM onboarding_applications` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count applications: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT id, phone,
		       COALESCE(data->>'full_name', '') AS full_name,
		       COALESCE(data->>'role', '') AS role,
		       outlet_code, current_step, status, submitted_at, updated_at
		FROM onboarding_applications%s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)

	items := []models.ApplicationSummary{}
	if err := r.db.SelectContext(ctx, &items, query, append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}
	return items, total, nil
}

func applicationFilterClause(filter models.ApplicationFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.OutletCode != "" {
		add("outlet_code = $%d", filter.OutletCode)
	}
	if filter.OutletCodes != nil {
		add("outlet_code = ANY($%d)", pq.Array(filter.OutletCodes))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		add("(phone ILIKE $%[1]d OR data->>'full_name' ILIKE $%[1]d)", "%"+s+"%")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// CountByStatus returns application counts grouped by status. A nil scope counts everything.
func (r *ApplicationRepository) CountByStatus(ctx context.Context, outletCodes []string) (map[models.ApplicationStatus]int, error) {
	var rows []struct {
		Status models.ApplicationStatus `db:"status"`
		Count  int                      `db:"count"`
	}

	query := `
		SELECT status, COUNT(*) AS count
		FROM onboarding_applications
		WHERE $1::text[] IS NULL OR outlet_code = ANY($1::text[])
		GROUP BY status
	`
	if err := r.db.SelectContext(ctx, &rows, query, scopeArg(outletCodes)); err != nil {
		return nil, fmt.Errorf("failed to count applications by status: %w", err)
	}

	counts := make(map[models.ApplicationStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountSubmittedSince counts applications submitted after since
func (r *ApplicationRepository) CountSubmittedSince(ctx context.Context, since time.Time, outletCodes []string) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM onboarding_applications
		WHERE submitted_at >= $1 AND ($2::text[] IS NULL OR outlet_code = ANY($2::text[]))
	`
	if err := r.db.GetContext(ctx, &count, query, since, scopeArg(outletCodes)); err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

// scopeArg maps a nil outlet scope to SQL NULL
func scopeArg(outletCodes []string) interface{} {
	if outletCodes == nil {
		return nil
	}
	return pq.Array(outletCodes)
}

func requireOneRow(result sql.Result, entity string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %w", entity, ErrNotFound)
	}
	return nil
}

// ErrNotFound is returned by updates that matched no row
var ErrNotFound = errors.New("not found")
