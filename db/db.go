// Package db exposes the embedded schema migrations so binaries can apply
// them at startup without shipping loose SQL files.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
