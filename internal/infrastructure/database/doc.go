// Package database provides the SQLite store behind the AMBEO bridge's
// soundbar registry.
//
// The database holds the soundbars the bridge has seen: identity, network
// endpoint, product family, detected capabilities and last health. It is not
// a state history; live soundbar state is only ever read from the device.
//
// Connections use WAL mode with a single writer. Schema changes are plain SQL
// files named YYYYMMDD_HHMMSS_description.up.sql (with an optional .down.sql)
// applied in version order by Migrate. The files are supplied through
// MigrationsFS, which the top-level migrations package fills from an embedded
// filesystem.
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
