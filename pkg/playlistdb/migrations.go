package playlistdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE playlist_item(
			name TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			updated_at INT NOT NULL
		);
	`))

	return migs
}
