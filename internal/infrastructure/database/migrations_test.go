package database

import (
	"context"
	"testing"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{
			name:        "valid up migration",
			filename:    "20260826_120000_app_credentials.up.sql",
			wantVersion: "20260826_120000",
			wantUp:      true,
			wantOK:      true,
		},
		{
			name:        "valid down migration",
			filename:    "20260826_120000_app_credentials.down.sql",
			wantVersion: "20260826_120000",
			wantUp:      false,
			wantOK:      true,
		},
		{
			name:     "missing direction suffix",
			filename: "20260826_120000_app_credentials.sql",
			wantOK:   false,
		},
		{
			name:     "not a sql file",
			filename: "README.md",
			wantOK:   false,
		},
		{
			name:     "no version parts",
			filename: "schema.up.sql",
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if isUp != tt.wantUp {
				t.Errorf("isUp = %v, want %v", isUp, tt.wantUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	got := extractMigrationName("20260826_120000_app_credentials.up.sql")
	if got != "app_credentials" {
		t.Errorf("extractMigrationName() = %q, want %q", got, "app_credentials")
	}
}

func TestMigrateWithNoEmbeddedFiles(t *testing.T) {
	db := openTestDB(t)

	// With no embedded filesystem set, Migrate should only create the
	// schema_migrations table and succeed.
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		t.Fatalf("querying schema_migrations: %v", err)
	}
	if count != 0 {
		t.Errorf("applied migrations = %d, want 0", count)
	}
}
