// Package database opens the SQLite file that backs the endpoint value
// store and applies its embedded schema migrations.
//
// The connection is opened with WAL mode, a busy timeout and foreign
// keys enforced, and the pool is pinned to a single connection because
// SQLite allows one writer. The database file is chmodded to 0600
// since user codes end up inside it.
//
// Migrations are pairs of {version}_{name}.up.sql / .down.sql files,
// registered by the migrations package through MigrationsFS, and each
// runs in its own transaction.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
