package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	// GetActiveByProgram returns the active connection scoped to the given
	// program, or nil when no such row exists.
	GetActiveByProgram(ctx context.Context, businessId, programId string) (*Connection, error)
	// GetActiveDefault returns the active business-wide connection (empty
	// program scope), or nil when no such row exists.
	GetActiveDefault(ctx context.Context, businessId string) (*Connection, error)
	// UpdateToken persists a refreshed access token and its new expiry.
	UpdateToken(ctx context.Context, id int, accessToken string, expiry time.Time) error
	Create(ctx context.Context, conn Connection) (int, error)
	Deactivate(ctx context.Context, businessId, programId string, provider Provider) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const connectionColumns = `id, business_id, program_id, provider, calendar_id, account_email,
		access_token, refresh_token, token_expiry, active, sync_status`

func (r *RepositoryImpl) GetActiveByProgram(ctx context.Context, businessId, programId string) (*Connection, error) {
	query := `SELECT ` + connectionColumns + `
			FROM calendar_connections
			WHERE business_id = $1 AND program_id = $2 AND active
			ORDER BY id
			LIMIT 1`
	return r.queryOne(ctx, query, businessId, programId)
}

func (r *RepositoryImpl) GetActiveDefault(ctx context.Context, businessId string) (*Connection, error) {
	query := `SELECT ` + connectionColumns + `
			FROM calendar_connections
			WHERE business_id = $1 AND program_id = '' AND active
			ORDER BY id
			LIMIT 1`
	return r.queryOne(ctx, query, businessId)
}

func (r *RepositoryImpl) queryOne(ctx context.Context, query string, args ...any) (*Connection, error) {
	var conn Connection
	var expiry time.Time
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&conn.Id,
		&conn.BusinessId,
		&conn.ProgramId,
		&conn.Provider,
		&conn.CalendarId,
		&conn.AccountEmail,
		&conn.AccessToken,
		&conn.RefreshToken,
		&expiry,
		&conn.Active,
		&conn.SyncStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query calendar connection: %w", err)
	}
	conn.TokenExpiry = expiry
	return &conn, nil
}

func (r *RepositoryImpl) UpdateToken(ctx context.Context, id int, accessToken string, expiry time.Time) error {
	_, err := r.db.Exec(ctx,
		"UPDATE calendar_connections SET access_token = $1, token_expiry = $2, sync_status = 'ok' WHERE id = $3",
		accessToken, expiry, id)
	if err != nil {
		return fmt.Errorf("failed to update connection token: %w", err)
	}
	return nil
}

func (r *RepositoryImpl) Create(ctx context.Context, conn Connection) (int, error) {
	var id int
	err := r.db.QueryRow(ctx,
		`INSERT INTO calendar_connections
			(business_id, program_id, provider, calendar_id, account_email, access_token, refresh_token, token_expiry, active, sync_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, 'ok')
		RETURNING id`,
		conn.BusinessId, conn.ProgramId, conn.Provider, conn.CalendarId, conn.AccountEmail,
		conn.AccessToken, conn.RefreshToken, conn.TokenExpiry).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create calendar connection: %w", err)
	}
	return id, nil
}

func (r *RepositoryImpl) Deactivate(ctx context.Context, businessId, programId string, provider Provider) error {
	_, err := r.db.Exec(ctx,
		"UPDATE calendar_connections SET active = false WHERE business_id = $1 AND program_id = $2 AND provider = $3",
		businessId, programId, provider)
	if err != nil {
		return fmt.Errorf("failed to deactivate calendar connection: %w", err)
	}
	return nil
}
