// Package postgres implements notifications.Storage and
// notifications.UserDirectory on PostgreSQL through pgx.
//
// The schema lives in the root migrations package. Every get-or-create is an
// INSERT ... ON CONFLICT DO NOTHING followed by a read of the winning row, so
// concurrent workers never create duplicates.
package postgres
