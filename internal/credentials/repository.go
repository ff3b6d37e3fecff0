package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates no credentials are stored for the requested device.
// The caller should run the registration flow.
var ErrNotFound = errors.New("credentials: not found")

// Credentials holds the app token granted by a router through its
// physical authorization flow. The token is the HMAC key for every
// subsequent session login, so losing it means pressing the router's
// front-panel button again.
type Credentials struct {
	// DeviceKey identifies the router, formatted as "host:port".
	DeviceKey string

	// AppID is the application identity the token was granted to.
	AppID string

	// AppToken is the secret granted by the router. Never logged.
	AppToken string

	// TrackID is the authorization tracking id returned at grant time.
	TrackID int

	// GrantedAt is when the user approved the authorization.
	GrantedAt time.Time

	UpdatedAt time.Time
}

// Repository defines the interface for credential persistence.
type Repository interface {
	Get(ctx context.Context, deviceKey string) (*Credentials, error)
	Save(ctx context.Context, creds *Credentials) error
	Delete(ctx context.Context, deviceKey string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed credential repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get retrieves the stored credentials for a device.
// Returns ErrNotFound when the device has never been registered.
func (r *SQLiteRepository) Get(ctx context.Context, deviceKey string) (*Credentials, error) {
	var c Credentials
	var grantedAt, updatedAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT device_key, app_id, app_token, track_id, granted_at, updated_at
		 FROM app_credentials WHERE device_key = ?`, deviceKey,
	).Scan(&c.DeviceKey, &c.AppID, &c.AppToken, &c.TrackID, &grantedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting credentials: %w", err)
	}

	c.GrantedAt, _ = time.Parse(time.RFC3339, grantedAt) //nolint:errcheck // format is controlled
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &c, nil
}

// Save inserts or replaces the credentials for a device.
func (r *SQLiteRepository) Save(ctx context.Context, creds *Credentials) error {
	if creds.DeviceKey == "" {
		return fmt.Errorf("saving credentials: device key is empty")
	}
	if creds.AppToken == "" {
		return fmt.Errorf("saving credentials: app token is empty")
	}

	now := time.Now().UTC()
	creds.UpdatedAt = now
	if creds.GrantedAt.IsZero() {
		creds.GrantedAt = now
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO app_credentials (device_key, app_id, app_token, track_id, granted_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(device_key) DO UPDATE SET
		   app_id = excluded.app_id,
		   app_token = excluded.app_token,
		   track_id = excluded.track_id,
		   granted_at = excluded.granted_at,
		   updated_at = excluded.updated_at`,
		creds.DeviceKey, creds.AppID, creds.AppToken, creds.TrackID,
		creds.GrantedAt.Format(time.RFC3339),
		creds.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}

	return nil
}

// Delete removes the credentials for a device.
// Used when the router reports the token as revoked; deleting forces a
// fresh registration on next startup. Deleting a missing row is not an
// error.
func (r *SQLiteRepository) Delete(ctx context.Context, deviceKey string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM app_credentials WHERE device_key = ?", deviceKey,
	)
	if err != nil {
		return fmt.Errorf("deleting credentials: %w", err)
	}
	return nil
}
