package gpslog

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrations returns the embedded schema migration files, rooted at the
// directory holding the .up.sql/.down.sql pairs.
func Migrations() fs.FS {
	fsys, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(err)
	}
	return fsys
}
