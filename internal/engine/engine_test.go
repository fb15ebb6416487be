package engine_test

import (
	"testing"

	"github.com/jugadbase/jugadb/internal/constraints"
	"github.com/jugadbase/jugadb/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *engine.Database {
	t.Helper()
	db, err := engine.Open(t.TempDir(), engine.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustExec(t *testing.T, db *engine.Database, sql string) *engine.Result {
	t.Helper()
	res, err := db.Exec(sql)
	require.NoError(t, err, "sql: %s", sql)
	return res
}

func TestInsertSelectRoundTrip(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE users (id SERIAL PRIMKEY, name VARCHAR(32) NOT NULL, age INT)`)
	mustExec(t, db, `INSERT INTO users (name, age) VALUES ('ada', 30), ('grace', 40)`)

	res := mustExec(t, db, `SELECT id, name, age FROM users WHERE name = 'ada'`)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(1), res.Rows[0][0].Int)
	assert.Equal(t, "ada", res.Rows[0][1].Str)
	assert.Equal(t, int64(30), res.Rows[0][2].Int)
}

func TestSelectOrderByLimitOffset(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE nums (id SERIAL PRIMKEY, v INT)`)
	for _, v := range []int{5, 3, 1, 4, 2} {
		mustExec(t, db, sprintfInsert(v))
	}

	res := mustExec(t, db, `SELECT v FROM nums ORDER BY v ASC LIM 2 OFF 1`)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, int64(2), res.Rows[0][0].Int)
	assert.Equal(t, int64(3), res.Rows[1][0].Int)
}

func sprintfInsert(v int) string {
	return "INSERT INTO nums (v) VALUES (" + itoa(v) + ")"
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestUpdateIsVisibleToLaterSelect(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE accounts (id SERIAL PRIMKEY, balance INT)`)
	mustExec(t, db, `INSERT INTO accounts (balance) VALUES (100)`)

	res := mustExec(t, db, `UPDATE accounts SET balance = balance + 50 WHERE id = 1`)
	assert.Equal(t, int64(1), res.RowsAffected)

	sel := mustExec(t, db, `SELECT balance FROM accounts WHERE id = 1`)
	require.Len(t, sel.Rows, 1)
	assert.Equal(t, int64(150), sel.Rows[0][0].Int)
}

func TestDeleteRemovesRow(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE items (id SERIAL PRIMKEY, label TEXT)`)
	mustExec(t, db, `INSERT INTO items (label) VALUES ('a'), ('b')`)

	res := mustExec(t, db, `DELETE FROM items WHERE id = 1`)
	assert.Equal(t, int64(1), res.RowsAffected)

	sel := mustExec(t, db, `SELECT id FROM items`)
	require.Len(t, sel.Rows, 1)
	assert.Equal(t, int64(2), sel.Rows[0][0].Int)
}

func TestForeignKeyCascadeDelete(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE parents (id SERIAL PRIMKEY, name TEXT)`)
	mustExec(t, db, `CREATE TABLE children (id SERIAL PRIMKEY, parent_id INT FOREIGN KEY REFERENCES parents(id) ON DELETE CASCADE, name TEXT)`)

	mustExec(t, db, `INSERT INTO parents (name) VALUES ('p1')`)
	mustExec(t, db, `INSERT INTO children (parent_id, name) VALUES (1, 'c1'), (1, 'c2')`)

	res := mustExec(t, db, `DELETE FROM parents WHERE id = 1`)
	assert.Equal(t, int64(1), res.RowsAffected)

	sel := mustExec(t, db, `SELECT id FROM children`)
	assert.Len(t, sel.Rows, 0)
}

func TestDuplicatePrimaryKeyIsRejected(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE widgets (id INT PRIMKEY, sku TEXT UNIQUE)`)
	mustExec(t, db, `INSERT INTO widgets (id, sku) VALUES (1, 'aaa')`)

	_, err := db.Exec(`INSERT INTO widgets (id, sku) VALUES (1, 'bbb')`)
	require.Error(t, err)
	var cv *constraints.ConstraintViolation
	require.ErrorAs(t, err, &cv)

	sel := mustExec(t, db, `SELECT id FROM widgets`)
	assert.Len(t, sel.Rows, 1)
}

func TestAggregateCount(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE events (id SERIAL PRIMKEY, kind TEXT)`)
	mustExec(t, db, `INSERT INTO events (kind) VALUES ('click'), ('click'), ('view')`)

	res := mustExec(t, db, `SELECT COUNT(*) FROM events`)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(3), res.Rows[0][0].Int)
}

func TestNoConstraintsTableSkipsValidation(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE NO_CONSTRAINTS TABLE raw (id INT PRIMKEY, v INT)`)
	mustExec(t, db, `INSERT INTO raw (id, v) VALUES (1, 10)`)
	mustExec(t, db, `INSERT INTO raw (id, v) VALUES (1, 20)`)

	res := mustExec(t, db, `SELECT v FROM raw`)
	assert.Len(t, res.Rows, 2)
}

func TestAlterTableAddColumnWithDefault(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE people (id SERIAL PRIMKEY, name TEXT)`)
	mustExec(t, db, `INSERT INTO people (name) VALUES ('bob')`)
	mustExec(t, db, `ALTER TABLE people ADD COLUMN active BOOL DEFAULT true`)

	res := mustExec(t, db, `SELECT active FROM people WHERE id = 1`)
	require.Len(t, res.Rows, 1)
}
