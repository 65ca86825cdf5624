package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/roach88/qpipe/internal/timing"
	"github.com/roach88/qpipe/internal/wire"
)

// Executor runs one batch inside one database transaction.
//
// The default policy is non-atomic: a statement that violates a
// database constraint is logged and skipped, and every other statement
// in the batch still commits. Affected counts reflect only the
// statements that succeeded. Atomic flips this to all-or-nothing.
type Executor struct {
	DB *sqlx.DB

	// Isolation is passed to BeginTx. Production uses
	// sql.LevelReadUncommitted, the weakest available, for throughput;
	// concurrent workers may observe each other's uncommitted writes.
	Isolation sql.IsolationLevel

	// Atomic rolls the whole batch back on the first statement error.
	Atomic bool

	// Integrity classifies a driver error as a constraint violation.
	// Nil uses the MySQL error numbering.
	Integrity func(error) bool

	Log logrus.FieldLogger
}

func (e *Executor) logger() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}

// ExecuteBatch runs every statement of b in order within a single
// transaction and aggregates the results. Each statement's rows are
// appended under its result key (the empty list is created first, so a
// non-reserved key always appears even when its statement returns
// nothing), and its row count is added to the affected total.
//
// A non-nil error means the batch did not commit; the caller drops the
// message and the producer eventually observes a lookup timeout.
func (e *Executor) ExecuteBatch(ctx context.Context, b wire.Batch, corrKey string, timers *timing.Set) (*wire.Result, error) {
	log := e.logger()

	tx, err := e.DB.BeginTxx(ctx, &sql.TxOptions{Isolation: e.Isolation})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	res := &wire.Result{Rows: make(map[string][]wire.Row)}
	for _, st := range b {
		// Reserved keys ("affected") contribute counts only; giving them
		// a rows list would collide with the envelope field of the same
		// name when the result is encoded.
		if _, ok := res.Rows[st.ResultKey]; !ok && !wire.ReservedResultKey(st.ResultKey) {
			res.Rows[st.ResultKey] = []wire.Row{}
		}

		name := statementTimer(st.Text, corrKey)
		timers.Start(name)
		count, rows, err := execStatement(ctx, tx, st.Text)
		timers.Stop(name)

		if err != nil {
			if e.integrity(err) {
				if e.Atomic {
					tx.Rollback()
					return nil, fmt.Errorf("integrity violation in atomic batch: %w", err)
				}
				log.WithError(err).WithField("statement", st.Text).Error("integrity violation, skipping statement")
				continue
			}
			tx.Rollback()
			return nil, fmt.Errorf("execute %q: %w", st.Text, err)
		}

		if len(rows) > 0 {
			res.Rows[st.ResultKey] = append(res.Rows[st.ResultKey], rows...)
		}
		res.Affected += count
		log.WithField("statement", st.Text).Debugf("statement affected %d rows", count)
	}

	timers.Start("commit")
	err = tx.Commit()
	timers.Stop("commit")
	if err != nil {
		return nil, fmt.Errorf("commit batch %s: %w", corrKey, err)
	}
	return res, nil
}

func (e *Executor) integrity(err error) bool {
	if e.Integrity != nil {
		return e.Integrity(err)
	}
	return isMySQLIntegrityViolation(err)
}

// execStatement runs one statement and returns its row count and, for
// row-returning statements, the rows themselves. Row counts match the
// driver's view: result rows for queries, affected rows otherwise.
func execStatement(ctx context.Context, tx *sqlx.Tx, text string) (int, []wire.Row, error) {
	if !returnsRows(text) {
		r, err := tx.ExecContext(ctx, text)
		if err != nil {
			return 0, nil, err
		}
		n, err := r.RowsAffected()
		if err != nil {
			return 0, nil, err
		}
		return int(n), nil, nil
	}

	rs, err := tx.QueryxContext(ctx, text)
	if err != nil {
		return 0, nil, err
	}
	defer rs.Close()

	var rows []wire.Row
	for rs.Next() {
		m := make(map[string]any)
		if err := rs.MapScan(m); err != nil {
			return 0, nil, err
		}
		rows = append(rows, normalizeRow(m))
	}
	if err := rs.Err(); err != nil {
		return 0, nil, err
	}
	return len(rows), rows, nil
}

// returnsRows reports whether the statement produces a result set.
func returnsRows(text string) bool {
	switch statementVerb(text) {
	case "SELECT", "SHOW", "DESCRIBE", "EXPLAIN":
		return true
	}
	return false
}

// statementVerb returns the statement's leading keyword, uppercased.
func statementVerb(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// statementTimer names the timer for one statement: the verb, a crc32
// fingerprint of the full text, and the correlation key, so slow
// statements in the timer log are attributable to their query and
// transaction.
func statementTimer(text, corrKey string) string {
	return fmt.Sprintf("%s %d %s", statementVerb(text), crc32.ChecksumIEEE([]byte(text)), corrKey)
}

// normalizeRow makes a scanned row JSON-friendly: the MySQL driver
// hands every column back as []byte for text-protocol queries.
func normalizeRow(m map[string]any) wire.Row {
	row := make(wire.Row, len(m))
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
			continue
		}
		row[k] = v
	}
	return row
}

// MySQL error numbers that signal a constraint violation.
// https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
var mysqlIntegrityNumbers = map[uint16]bool{
	1022: true, // ER_DUP_KEY
	1048: true, // ER_BAD_NULL_ERROR
	1062: true, // ER_DUP_ENTRY
	1169: true, // ER_DUP_UNIQUE
	1216: true, // ER_NO_REFERENCED_ROW
	1217: true, // ER_ROW_IS_REFERENCED
	1451: true, // ER_ROW_IS_REFERENCED_2
	1452: true, // ER_NO_REFERENCED_ROW_2
	1557: true, // ER_FOREIGN_DUPLICATE_KEY
	1586: true, // ER_DUP_ENTRY_WITH_KEY_NAME
	1859: true, // ER_DUP_UNKNOWN_IN_INDEX
}

func isMySQLIntegrityViolation(err error) bool {
	var merr *mysql.MySQLError
	return errors.As(err, &merr) && mysqlIntegrityNumbers[merr.Number]
}
