// Package database provides SQLite connectivity for Gray Media Core.
//
// The database holds operator state that must survive a restart:
//
//   - renderer_profiles: custom renderer profiles added through the admin API
//   - renderer_sightings: the last identification recorded per client address
//
// Built-in renderer profiles are embedded in the binary and never stored.
//
// Connections use WAL mode and a busy timeout, and the pool is pinned to a
// single connection to match SQLite's single-writer model. Schema changes are
// applied by Migrate from the SQL files registered in MigrationsFS, each
// version inside its own transaction.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
package database
