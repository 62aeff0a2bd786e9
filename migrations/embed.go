// Package migrations embeds the Postgres schema for the outbox, processed
// webhook events and the admin audit log.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
