// Package repositories implements the PostgreSQL-backed vocabulary source
// and mapping sink.
package repositories

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}
