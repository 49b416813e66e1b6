package credentialspg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tyemirov/instagate/internal/credentials"
)

const credentialColumns = `id, platform_id, username, display_name, access_token, profile_image_url, created_at, last_authenticated_at`

// PostgresStore persists credentials in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Upsert inserts the credential or updates the row holding the same platform id in one statement.
func (store *PostgresStore) Upsert(ctx context.Context, profile credentials.Profile, accessToken string, authenticatedAt time.Time) (credentials.Credential, error) {
	if strings.TrimSpace(profile.PlatformID) == "" {
		return credentials.Credential{}, fmt.Errorf("credential_store.upsert.pgx: %w", credentials.ErrEmptyPlatformID)
	}
	if strings.TrimSpace(accessToken) == "" {
		return credentials.Credential{}, fmt.Errorf("credential_store.upsert.pgx: %w", credentials.ErrEmptyAccessToken)
	}
	candidate := credentials.NewCredential(profile, accessToken, authenticatedAt)
	row := store.pool.QueryRow(ctx, `
INSERT INTO credentials (`+credentialColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (platform_id) DO UPDATE SET
    access_token = EXCLUDED.access_token,
    username = EXCLUDED.username,
    display_name = EXCLUDED.display_name,
    profile_image_url = EXCLUDED.profile_image_url,
    last_authenticated_at = EXCLUDED.last_authenticated_at
RETURNING `+credentialColumns,
		candidate.ID, candidate.PlatformID, candidate.Username, candidate.DisplayName,
		candidate.AccessToken, candidate.ProfileImageURL, authenticatedAt)
	stored, scanErr := scanCredential(row)
	if scanErr != nil {
		return credentials.Credential{}, fmt.Errorf("credential_store.upsert.pgx: %w", scanErr)
	}
	return stored, nil
}

// FindByAccessToken locates a credential by its exact access token.
func (store *PostgresStore) FindByAccessToken(ctx context.Context, accessToken string) (credentials.Credential, error) {
	if strings.TrimSpace(accessToken) == "" {
		return credentials.Credential{}, fmt.Errorf("credential_store.find.pgx: %w", credentials.ErrEmptyAccessToken)
	}
	row := store.pool.QueryRow(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE access_token = $1 LIMIT 1`, accessToken)
	stored, scanErr := scanCredential(row)
	if scanErr != nil {
		return credentials.Credential{}, fmt.Errorf("credential_store.find.pgx: %w", scanErr)
	}
	return stored, nil
}

// RefreshProfile merges a live profile into the stored row.
func (store *PostgresStore) RefreshProfile(ctx context.Context, platformID string, profile credentials.Profile, refreshedAt time.Time) (credentials.Credential, error) {
	var refreshed credentials.Credential
	txErr := pgx.BeginFunc(ctx, store.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE platform_id = $1 FOR UPDATE`, platformID)
		existing, scanErr := scanCredential(row)
		if scanErr != nil {
			return scanErr
		}
		refreshed = credentials.ApplyRefresh(existing, profile, refreshedAt)
		_, execErr := tx.Exec(ctx, `
UPDATE credentials
SET username = $1, display_name = $2, profile_image_url = $3, last_authenticated_at = $4
WHERE platform_id = $5
`, refreshed.Username, refreshed.DisplayName, refreshed.ProfileImageURL, refreshed.LastAuthenticatedAt, platformID)
		return execErr
	})
	if txErr != nil {
		return credentials.Credential{}, fmt.Errorf("credential_store.refresh.pgx: %w", txErr)
	}
	return refreshed, nil
}

func scanCredential(row pgx.Row) (credentials.Credential, error) {
	var stored credentials.Credential
	scanErr := row.Scan(
		&stored.ID,
		&stored.PlatformID,
		&stored.Username,
		&stored.DisplayName,
		&stored.AccessToken,
		&stored.ProfileImageURL,
		&stored.CreatedAt,
		&stored.LastAuthenticatedAt,
	)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return credentials.Credential{}, credentials.ErrCredentialNotFound
		}
		return credentials.Credential{}, scanErr
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	stored.LastAuthenticatedAt = stored.LastAuthenticatedAt.UTC()
	return stored, nil
}

var _ credentials.Store = (*PostgresStore)(nil)
