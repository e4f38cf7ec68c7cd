package trace

import (
	"database/sql"
	"errors"
	"fmt"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/tebeka/atexit"
)

// SQLiteWriter writes records to a SQLite database, one transaction per
// batch.
type SQLiteWriter struct {
	*sql.DB
	statement *sql.Stmt

	path      string
	records   []Record
	batchSize int
}

// NewSQLiteWriter creates a new SQLiteWriter.
func NewSQLiteWriter(path string) *SQLiteWriter {
	return &SQLiteWriter{
		path:      path,
		batchSize: 10000,
	}
}

// Path returns the database file path.
func (t *SQLiteWriter) Path() string {
	return t.path
}

// Init opens the database and creates the table.
func (t *SQLiteWriter) Init() error {
	db, err := sql.Open("sqlite3", t.path)
	if err != nil {
		return fmt.Errorf("failed to open trace database: %w", err)
	}

	t.DB = db

	_, err = t.Exec(`
		create table if not exists changes (
			tap   varchar(200) not null,
			edge  integer not null,
			data  integer not null,
			valid integer not null,
			ready integer not null
		)`)
	if err != nil {
		t.abandon()
		return fmt.Errorf("failed to create trace table: %w", err)
	}

	t.statement, err = t.Prepare(
		`insert into changes(tap, edge, data, valid, ready) values(?, ?, ?, ?, ?)`)
	if err != nil {
		t.abandon()
		return fmt.Errorf("failed to prepare trace statement: %w", err)
	}

	atexit.Register(func() {
		_ = t.Close()
	})

	return nil
}

// Write buffers a record and flushes full batches.
func (t *SQLiteWriter) Write(r Record) error {
	t.records = append(t.records, r)
	if len(t.records) >= t.batchSize {
		return t.Flush()
	}

	return nil
}

// Flush writes the buffered records in one transaction.
func (t *SQLiteWriter) Flush() error {
	if len(t.records) == 0 || t.DB == nil {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin trace transaction: %w", err)
	}

	stmt := tx.Stmt(t.statement)

	for _, r := range t.records {
		// SQLite integers are signed; data keeps its bit pattern.
		_, err := stmt.Exec(r.Tap, int64(r.Edge), int64(r.Data), r.Valid, r.Ready)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert trace record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trace transaction: %w", err)
	}

	t.records = nil

	return nil
}

// Close flushes and closes the database. The statement and the database
// are released even if the flush fails; the flush error is returned first.
func (t *SQLiteWriter) Close() error {
	if t.DB == nil {
		return nil
	}

	flushErr := t.Flush()
	t.records = nil

	var closeErr error
	if t.statement != nil {
		closeErr = t.statement.Close()
	}

	closeErr = errors.Join(closeErr, t.DB.Close())
	t.statement = nil
	t.DB = nil

	if flushErr != nil {
		return errors.Join(flushErr, closeErr)
	}

	return closeErr
}

// abandon closes a database that failed to initialize.
func (t *SQLiteWriter) abandon() {
	_ = t.DB.Close()
	t.DB = nil
}

// ReadSQLite reads all records of a trace database in insertion order.
func ReadSQLite(path string) ([]Record, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`select tap, edge, data, valid, ready from changes order by rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trace records: %w", err)
	}
	defer rows.Close()

	var records []Record

	for rows.Next() {
		var (
			r          Record
			edge, data int64
		)

		if err := rows.Scan(&r.Tap, &edge, &data, &r.Valid, &r.Ready); err != nil {
			return nil, fmt.Errorf("failed to scan trace record: %w", err)
		}

		r.Edge = uint64(edge)
		r.Data = uint64(data)
		records = append(records, r)
	}

	return records, rows.Err()
}
