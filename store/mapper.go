package store

import (
	"database/sql"
	"fmt"

	"github.com/goliatone/go-painpoint/painpoint"
)

// Columns lists the table columns in the order InsertValues and the scanners use.
const Columns = "id, classid, username, thumbsdown"

type rowScanner interface {
	Scan(dest ...any) error
}

// rowToRecord scans one row of Columns. A NULL username scans as "".
func rowToRecord(row rowScanner) (painpoint.Record, error) {
	var (
		rec     painpoint.Record
		user    sql.NullString
		flagged sql.NullBool
	)
	if err := row.Scan(&rec.ID, &rec.ClassID, &user, &flagged); err != nil {
		return painpoint.Record{}, fmt.Errorf("scan painpoint: %w", err)
	}
	rec.UserName = user.String
	rec.Flagged = flagged.Bool
	return rec, nil
}

// rowsToList scans rows in order. It never returns a nil slice on success.
func rowsToList(rows *sql.Rows) ([]painpoint.Record, error) {
	records := []painpoint.Record{}
	for rows.Next() {
		rec, err := rowToRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate painpoints: %w", err)
	}
	return records, nil
}

// rowsToMap scans rows keyed by id; the last row wins on a duplicate id.
func rowsToMap(rows *sql.Rows) (map[int32]painpoint.Record, error) {
	records := make(map[int32]painpoint.Record)
	for rows.Next() {
		rec, err := rowToRecord(rows)
		if err != nil {
			return nil, err
		}
		records[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate painpoints: %w", err)
	}
	return records, nil
}

// InsertValues returns rec's fields in Columns order, for parameter binding.
func InsertValues(rec painpoint.Record) []any {
	return []any{rec.ID, rec.ClassID, rec.UserName, rec.Flagged}
}
