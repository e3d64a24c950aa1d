package profileinfra

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/profile"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// PostgresRepository implements profile.Repository on PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ profile.Repository = (*PostgresRepository)(nil)

// EnsureSchema creates the profiles table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return errx.Wrap(err, "failed to apply profile schema", errx.TypeInternal)
	}
	return nil
}

type profileRow struct {
	ID               string         `db:"id"`
	IdentityRef      string         `db:"identity_ref"`
	Type             string         `db:"type"`
	Username         string         `db:"username"`
	Email            string         `db:"email"`
	FirstName        string         `db:"first_name"`
	LastName         string         `db:"last_name"`
	PhoneCountryCode string         `db:"phone_country_code"`
	PhoneNumber      string         `db:"phone_number"`
	Active           bool           `db:"active"`
	RoleIDs          pq.StringArray `db:"role_ids"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func toRow(rec profile.ProfileRecord) profileRow {
	roles := pq.StringArray(rec.RoleIDs)
	if roles == nil {
		roles = pq.StringArray{}
	}
	return profileRow{
		ID:               rec.ID.String(),
		IdentityRef:      rec.IdentityRef.String(),
		Type:             rec.Type.String(),
		Username:         rec.Username,
		Email:            rec.Email,
		FirstName:        rec.FirstName,
		LastName:         rec.LastName,
		PhoneCountryCode: rec.PhoneCountryCode,
		PhoneNumber:      rec.PhoneNumber,
		Active:           rec.Active,
		RoleIDs:          roles,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
}

func (row profileRow) toDomain() *profile.ProfileRecord {
	roles := []string(row.RoleIDs)
	if roles == nil {
		roles = []string{}
	}
	return &profile.ProfileRecord{
		ID:               kernel.NewProfileID(row.ID),
		IdentityRef:      kernel.NewIdentityID(row.IdentityRef),
		Type:             profile.PrincipalType(row.Type),
		Username:         row.Username,
		Email:            row.Email,
		FirstName:        row.FirstName,
		LastName:         row.LastName,
		PhoneCountryCode: row.PhoneCountryCode,
		PhoneNumber:      row.PhoneNumber,
		Active:           row.Active,
		RoleIDs:          roles,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

const profileColumns = `id, identity_ref, type, username, email, first_name, last_name,
	phone_country_code, phone_number, active, role_ids, created_at, updated_at`

func uniqueViolation(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr, true
	}
	return nil, false
}

func duplicateReason(pqErr *pq.Error) string {
	switch {
	case strings.Contains(pqErr.Constraint, "identity_ref"):
		return "identity_ref already has a profile"
	case strings.Contains(pqErr.Constraint, "username"):
		return "username already taken"
	default:
		return "unique constraint " + pqErr.Constraint
	}
}

func (r *PostgresRepository) Insert(ctx context.Context, rec profile.ProfileRecord) error {
	query := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES (
			:id, :identity_ref, :type, :username, :email, :first_name, :last_name,
			:phone_country_code, :phone_number, :active, :role_ids, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, toRow(rec)); err != nil {
		if pqErr, ok := uniqueViolation(err); ok {
			return profile.ErrDuplicate(duplicateReason(pqErr))
		}
		return errx.Wrap(err, "failed to insert profile", errx.TypeInternal).
			WithDetail("identity_ref", rec.IdentityRef)
	}
	return nil
}

func (r *PostgresRepository) FindByIdentityRef(ctx context.Context, identityRef kernel.IdentityID) (*profile.ProfileRecord, error) {
	var row profileRow
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE identity_ref = $1`
	if err := r.db.GetContext(ctx, &row, query, identityRef.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, profile.ErrNotFound().WithDetail("identity_ref", identityRef)
		}
		return nil, errx.Wrap(err, "failed to find profile by identity_ref", errx.TypeInternal)
	}
	return row.toDomain(), nil
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string, principalType profile.PrincipalType) (*profile.ProfileRecord, error) {
	var row profileRow
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE username = $1 AND type = $2`
	if err := r.db.GetContext(ctx, &row, query, username, principalType.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, profile.ErrNotFound().WithDetail("username", username).WithDetail("type", principalType)
		}
		return nil, errx.Wrap(err, "failed to find profile by username", errx.TypeInternal)
	}
	return row.toDomain(), nil
}

// Update writes every mutable column. identity_ref is only used to select
// the row.
func (r *PostgresRepository) Update(ctx context.Context, rec profile.ProfileRecord) error {
	query := `
		UPDATE profiles SET
			username = :username,
			email = :email,
			first_name = :first_name,
			last_name = :last_name,
			phone_country_code = :phone_country_code,
			phone_number = :phone_number,
			active = :active,
			role_ids = :role_ids,
			updated_at = :updated_at
		WHERE identity_ref = :identity_ref`

	result, err := r.db.NamedExecContext(ctx, query, toRow(rec))
	if err != nil {
		if pqErr, ok := uniqueViolation(err); ok {
			return profile.ErrDuplicate(duplicateReason(pqErr))
		}
		return errx.Wrap(err, "failed to update profile", errx.TypeInternal).
			WithDetail("identity_ref", rec.IdentityRef)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on update", errx.TypeInternal)
	}
	if rows == 0 {
		return profile.ErrNotFound().WithDetail("identity_ref", rec.IdentityRef)
	}
	return nil
}

func (r *PostgresRepository) DeleteByIdentityRef(ctx context.Context, identityRef kernel.IdentityID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE identity_ref = $1`, identityRef.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete profile", errx.TypeInternal).
			WithDetail("identity_ref", identityRef)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on delete", errx.TypeInternal)
	}
	if rows == 0 {
		return profile.ErrNotFound().WithDetail("identity_ref", identityRef)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, filter profile.Filter, opts kernel.PaginationOptions) ([]profile.ProfileRecord, int, error) {
	opts = opts.Normalize()

	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Type != "" {
		where = append(where, "type = "+arg(filter.Type.String()))
	}
	if filter.Active != nil {
		where = append(where, "active = "+arg(*filter.Active))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		p := arg("%" + s + "%")
		where = append(where, "(username ILIKE "+p+" OR email ILIKE "+p+" OR first_name ILIKE "+p+" OR last_name ILIKE "+p+")")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM profiles`+clause, args...); err != nil {
		return nil, 0, errx.Wrap(err, "failed to count profiles", errx.TypeInternal)
	}

	query := `SELECT ` + profileColumns + ` FROM profiles` + clause +
		` ORDER BY created_at DESC LIMIT ` + arg(opts.PageSize) + ` OFFSET ` + arg(opts.Offset())
	var rows []profileRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, errx.Wrap(err, "failed to list profiles", errx.TypeInternal)
	}

	out := make([]profile.ProfileRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, total, nil
}
