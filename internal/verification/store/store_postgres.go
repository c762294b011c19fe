package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kycgate/internal/verification/models"
	"kycgate/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

const (
	uniqueViolation    = "23505"
	usernameConstraint = "verification_requests_username_key"
	emailConstraint    = "verification_requests_email_key"

	selectColumns = `id, username, first_name, last_name, email, phone,
		id_image_url, selfie_image_url, status, created_at, updated_at,
		reviewed_by, reviewed_at`
)

// PostgresStore persists verification requests in Postgres.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the table and indexes when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return tx.Run(ctx, s.db, func(t pgx.Tx) error {
		for _, stmt := range strings.Split(schema, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := t.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM verification_requests WHERE username = $1)`, username)
}

func (s *PostgresStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM verification_requests WHERE email = $1)`, email)
}

func (s *PostgresStore) exists(ctx context.Context, query, arg string) (bool, error) {
	var found bool
	if err := s.db.QueryRow(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("probe verification request: %w", err)
	}
	return found, nil
}

// Create inserts r. The unique constraints are authoritative: a concurrent
// duplicate that slipped past the probes fails here with a conflict.
func (s *PostgresStore) Create(ctx context.Context, r *models.VerificationRequest) error {
	query := `
		INSERT INTO verification_requests (
			id, username, first_name, last_name, email, phone,
			id_image_url, selfie_image_url, status, created_at, updated_at,
			reviewed_by, reviewed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.Exec(ctx, query,
		r.ID, r.Username, r.FirstName, r.LastName, r.Email, r.Phone,
		r.IDImageURL, r.SelfieImageURL, string(r.Status), r.CreatedAt, r.UpdatedAt,
		r.ReviewedBy, r.ReviewedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case usernameConstraint:
				return models.ErrUsernameTaken
			case emailConstraint:
				return models.ErrEmailTaken
			}
		}
		return fmt.Errorf("insert verification request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error) {
	query := `SELECT ` + selectColumns + ` FROM verification_requests WHERE id = $1`
	r, err := scanRequest(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrRequestNotFound
		}
		return nil, fmt.Errorf("find verification request: %w", err)
	}
	return r, nil
}

// UpdateStatus moves a pending request to status. reviewedBy is only written
// when non-nil.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status, reviewedBy *string, now time.Time) (*models.VerificationRequest, error) {
	query := `
		UPDATE verification_requests
		SET status = $2,
			updated_at = $3,
			reviewed_at = $3,
			reviewed_by = COALESCE($4, reviewed_by)
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + selectColumns
	r, err := scanRequest(s.db.QueryRow(ctx, query, id, string(status), now, reviewedBy))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update verification status: %w", err)
	}

	// Nothing updated: either the id is unknown or the request was reviewed.
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, models.ErrAlreadyReviewed
	}
	return nil, fmt.Errorf("update verification status: request %s left in status %s", id, current.Status)
}

// List returns one page ordered newest first. The total comes from a COUNT
// over the same filter.
func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter, page, perPage int) (*models.Page, error) {
	where, args := buildWhere(filter)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM verification_requests`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count verification requests: %w", err)
	}

	offset, ok := models.Offset(page, perPage)
	if !ok {
		return models.NewPage(nil, total, page, perPage), nil
	}
	query := fmt.Sprintf(`SELECT %s FROM verification_requests%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		selectColumns, where, len(args)+1, len(args)+2)
	rows, err := s.db.Query(ctx, query, append(args, perPage, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list verification requests: %w", err)
	}
	defer rows.Close()

	items := make([]*models.VerificationRequest, 0, perPage)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification request: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification requests: %w", err)
	}
	return models.NewPage(items, total, page, perPage), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func buildWhere(filter models.ListFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			`(username ILIKE $%[1]d ESCAPE '\' OR email ILIKE $%[1]d ESCAPE '\' OR first_name ILIKE $%[1]d ESCAPE '\' OR last_name ILIKE $%[1]d ESCAPE '\')`, n))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes search text match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanRequest(row pgx.Row) (*models.VerificationRequest, error) {
	var (
		r      models.VerificationRequest
		status string
	)
	err := row.Scan(
		&r.ID, &r.Username, &r.FirstName, &r.LastName, &r.Email, &r.Phone,
		&r.IDImageURL, &r.SelfieImageURL, &status, &r.CreatedAt, &r.UpdatedAt,
		&r.ReviewedBy, &r.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = models.Status(status)
	return &r, nil
}
