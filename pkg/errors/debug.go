package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Report is a log-oriented breakdown of an error chain, including the
// Postgres diagnostics when a driver error sits underneath.
type Report struct {
	Message string
	Code    Code
	Chain   []string

	PGCode       string
	PGConstraint string
	PGTable      string
	PGColumn     string
	PGDetail     string
}

// Inspect walks err and collects what Report needs. Typed codes come from
// the outermost *Error.
func Inspect(err error) Report {
	if err == nil {
		return Report{}
	}
	r := Report{Message: err.Error(), Code: CodeOf(err)}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		r.Chain = append(r.Chain, fmt.Sprintf("%T", e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		r.PGCode, r.PGConstraint, r.PGTable = pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName
		r.PGColumn, r.PGDetail = pgxErr.ColumnName, pgxErr.Detail
	case stdErrors.As(err, &pqErr):
		r.PGCode, r.PGConstraint, r.PGTable = string(pqErr.Code), pqErr.Constraint, pqErr.Table
		r.PGColumn, r.PGDetail = pqErr.Column, pqErr.Detail
	}
	return r
}

// Fields renders the report as log fields, omitting empty Postgres values.
func (r Report) Fields() map[string]any {
	fields := map[string]any{
		"error":       r.Message,
		"error_code":  r.Code,
		"error_chain": r.Chain,
	}
	for k, v := range map[string]string{
		"pg_code":       r.PGCode,
		"pg_constraint": r.PGConstraint,
		"pg_table":      r.PGTable,
		"pg_column":     r.PGColumn,
		"pg_detail":     r.PGDetail,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}
