// Package database provides SQLite persistence for the Freebox Bridge.
//
// The bridge stores its registration credentials (app token and track ID)
// in a single SQLite file so a restart does not require pressing the
// router's front-panel button again. The file is opened in WAL mode with
// owner-only permissions because it contains the app token.
//
// Schema changes are applied through embedded SQL migrations, each in its
// own transaction, tracked in the schema_migrations table.
package database
