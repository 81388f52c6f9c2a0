// Package postgres embeds the change-prop schema migrations so the
// worker binary can run them on startup without depending on a
// filesystem path, using golang-migrate's iofs source driver.
package postgres

import "embed"

//go:embed *.sql
var FS embed.FS
