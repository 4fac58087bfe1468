// Package migrations embebe los archivos SQL para correrlos con
// golang-migrate desde el binario, sin depender del filesystem de deploy.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
