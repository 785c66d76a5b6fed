// Package database provides the bridge's SQLite connection and schema
// migrations.
//
// The database holds the audit log; the catalog itself stays in the JSON
// state document.
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
// Migrations are read from MigrationsFS, which the migrations package fills
// with the embedded *.sql files. Each file pair is
// YYYYMMDD_HHMMSS_name.up.sql and YYYYMMDD_HHMMSS_name.down.sql.
//
// All queries use parameterised statements. Database files are created with
// mode 0600.
package database
