package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("credential_store.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("credential_store.empty_database_url")
	errSQLiteEmptyPath     = errors.New("credential_store.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("credential_store.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("credential_store.unsupported_no_scheme")
)

// DatabaseStore persists credentials using GORM.
type DatabaseStore struct {
	db          *gorm.DB
	driverLabel string
}

// Driver exposes the selected database driver label.
func (store *DatabaseStore) Driver() string {
	return store.driverLabel
}

type credentialRecord struct {
	ID                  string    `gorm:"column:id;primaryKey"`
	PlatformID          string    `gorm:"column:platform_id;uniqueIndex;not null"`
	Username            string    `gorm:"column:username;not null;default:''"`
	DisplayName         string    `gorm:"column:display_name;not null;default:''"`
	AccessToken         string    `gorm:"column:access_token;index;not null"`
	ProfileImageURL     string    `gorm:"column:profile_image_url;not null;default:''"`
	CreatedAt           time.Time `gorm:"column:created_at;not null"`
	LastAuthenticatedAt time.Time `gorm:"column:last_authenticated_at;not null"`
}

func (credentialRecord) TableName() string {
	return "credentials"
}

// upsertColumns are overwritten on every login; id and created_at are never touched.
var upsertColumns = []string{"access_token", "username", "display_name", "profile_image_url", "last_authenticated_at"}

// NewDatabaseStore constructs a GORM-backed store and migrates its table.
func NewDatabaseStore(ctx context.Context, databaseURL string) (*DatabaseStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("credential_store.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("credential_store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&credentialRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("credential_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseStore{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// Upsert inserts the credential or updates the existing row for the same platform id.
func (store *DatabaseStore) Upsert(ctx context.Context, profile Profile, accessToken string, authenticatedAt time.Time) (Credential, error) {
	if err := validateUpsert(profile, accessToken); err != nil {
		return Credential{}, fmt.Errorf("credential_store.upsert.%s: %w", store.driverLabel, err)
	}
	record := toRecord(NewCredential(profile, accessToken, authenticatedAt))
	createErr := store.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(&record).Error
	if createErr != nil {
		return Credential{}, fmt.Errorf("credential_store.upsert.%s: %w", store.driverLabel, createErr)
	}
	var stored credentialRecord
	if err := store.db.WithContext(ctx).Where("platform_id = ?", profile.PlatformID).Take(&stored).Error; err != nil {
		return Credential{}, fmt.Errorf("credential_store.upsert.%s: %w", store.driverLabel, err)
	}
	return stored.toCredential(), nil
}

// FindByAccessToken locates a credential by its exact access token.
func (store *DatabaseStore) FindByAccessToken(ctx context.Context, accessToken string) (Credential, error) {
	if strings.TrimSpace(accessToken) == "" {
		return Credential{}, fmt.Errorf("credential_store.find.%s: %w", store.driverLabel, ErrEmptyAccessToken)
	}
	var record credentialRecord
	err := store.db.WithContext(ctx).Where("access_token = ?", accessToken).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Credential{}, fmt.Errorf("credential_store.find.%s: %w", store.driverLabel, ErrCredentialNotFound)
		}
		return Credential{}, fmt.Errorf("credential_store.find.%s: %w", store.driverLabel, err)
	}
	return record.toCredential(), nil
}

// RefreshProfile merges a live profile into the stored row.
func (store *DatabaseStore) RefreshProfile(ctx context.Context, platformID string, profile Profile, refreshedAt time.Time) (Credential, error) {
	var refreshed Credential
	txErr := store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record credentialRecord
		if err := tx.Where("platform_id = ?", platformID).Take(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCredentialNotFound
			}
			return err
		}
		refreshed = ApplyRefresh(record.toCredential(), profile, refreshedAt)
		return tx.Model(&credentialRecord{}).
			Where("platform_id = ?", platformID).
			Updates(map[string]any{
				"username":              refreshed.Username,
				"display_name":          refreshed.DisplayName,
				"profile_image_url":     refreshed.ProfileImageURL,
				"last_authenticated_at": refreshed.LastAuthenticatedAt,
			}).Error
	})
	if txErr != nil {
		return Credential{}, fmt.Errorf("credential_store.refresh.%s: %w", store.driverLabel, txErr)
	}
	return refreshed, nil
}

func toRecord(credential Credential) credentialRecord {
	return credentialRecord{
		ID:                  credential.ID,
		PlatformID:          credential.PlatformID,
		Username:            credential.Username,
		DisplayName:         credential.DisplayName,
		AccessToken:         credential.AccessToken,
		ProfileImageURL:     credential.ProfileImageURL,
		CreatedAt:           credential.CreatedAt,
		LastAuthenticatedAt: credential.LastAuthenticatedAt,
	}
}

func (record credentialRecord) toCredential() Credential {
	return Credential{
		ID:                  record.ID,
		PlatformID:          record.PlatformID,
		Username:            record.Username,
		DisplayName:         record.DisplayName,
		AccessToken:         record.AccessToken,
		ProfileImageURL:     record.ProfileImageURL,
		CreatedAt:           record.CreatedAt.UTC(),
		LastAuthenticatedAt: record.LastAuthenticatedAt.UTC(),
	}
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("credential_store.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("credential_store.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("credential_store.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("credential_store.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
