package warehouse

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/pgedge-starload/internal/db"
)

var errCheckViolation = errors.New(`new row violates check constraint "fact_orders_review_score_check"`)

// fakeDB keeps committed table contents. Transactions stage their writes
// and only publish them on commit, like PostgreSQL.
type fakeDB struct {
	tables   map[string][][]any
	meta     map[string]string
	begins   int
	commits  int
	rollback int
	failCopy error
}

func newFakeDB() *fakeDB {
	return &fakeDB{tables: map[string][][]any{}, meta: map[string]string{}}
}

func (f *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	f.begins++
	return &fakeTx{db: f, tables: map[string][][]any{}, meta: map[string]string{}}, nil
}

type fakeTx struct {
	pgx.Tx
	db     *fakeDB
	tables map[string][][]any
	meta   map[string]string
	ddl      bool
	dropMeta bool
	closed   bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "DROP TABLE IF EXISTS fact_orders"):
		t.ddl = true
	case strings.Contains(sql, "DROP TABLE IF EXISTS "+db.MetadataTable):
		t.dropMeta = true
	case strings.Contains(sql, "INSERT INTO starload_metadata"):
		t.meta[args[0].(string)] = args[1].(string)
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (t *fakeTx) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	if t.db.failCopy != nil {
		return 0, t.db.failCopy
	}
	name := table[0]
	scoreCol := -1
	for i, c := range columns {
		if c == "review_score" {
			scoreCol = i
		}
	}
	var n int64
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return n, err
		}
		if scoreCol >= 0 {
			if s, ok := values[scoreCol].(*int); ok && s != nil && (*s < 1 || *s > 5) {
				return n, errCheckViolation
			}
		}
		t.tables[name] = append(t.tables[name], values)
		n++
	}
	return n, src.Err()
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.db.commits++
	if t.ddl {
		t.db.tables = map[string][][]any{}
	}
	if t.dropMeta {
		t.db.meta = map[string]string{}
	}
	for name, rows := range t.tables {
		t.db.tables[name] = rows
	}
	for k, v := range t.meta {
		t.db.meta[k] = v
	}
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.db.rollback++
	return nil
}

func sampleTables(score int) []Table {
	return []Table{
		{Name: TableDates, Columns: []string{"date_key"}, Rows: [][]any{{20180115}, {20180120}}},
		{Name: TableProducts, Columns: []string{"product_key", "product_id"}, Rows: [][]any{{int64(1), "p1"}}},
		{
			Name:    TableFacts,
			Columns: []string{"order_id", "order_item_id", "review_score"},
			Rows: [][]any{
				{"o1", 1, &score},
				{"o1", 2, &score},
				{"o2", 1, (*int)(nil)},
			},
		},
	}
}

func TestLoaderCommitsAllTables(t *testing.T) {
	fdb := newFakeDB()
	loader := NewLoader(fdb, Config{BatchSize: 2})

	res, err := loader.Load(context.Background(), SchemaSQL, sampleTables(5))
	require.NoError(t, err)

	assert.Equal(t, 1, fdb.commits)
	assert.Zero(t, fdb.rollback)
	assert.Len(t, fdb.tables[TableFacts], 3)
	assert.Equal(t, int64(3), res.Rows[TableFacts])
	assert.Equal(t, int64(2), res.Rows[TableDates])
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, res.RunID, fdb.meta[db.KeyRunID])
	assert.Equal(t, "3", fdb.meta[db.RowsKey(TableFacts)])
	assert.NotEmpty(t, fdb.meta[db.KeyLoadedAt])
}

func TestLoaderRollsBackOnConstraintViolation(t *testing.T) {
	fdb := newFakeDB()
	loader := NewLoader(fdb, Config{})

	_, err := loader.Load(context.Background(), SchemaSQL, sampleTables(4))
	require.NoError(t, err)
	baseline := fdb.tables
	baselineMeta := map[string]string{}
	for k, v := range fdb.meta {
		baselineMeta[k] = v
	}

	_, err = loader.Load(context.Background(), SchemaSQL, sampleTables(9))
	require.Error(t, err)
	assert.ErrorIs(t, err, errCheckViolation)
	assert.Contains(t, err.Error(), TableFacts)

	assert.Equal(t, 1, fdb.commits, "failing load must never commit")
	assert.Equal(t, 1, fdb.rollback)
	assert.Equal(t, baseline, fdb.tables)
	assert.Equal(t, baselineMeta, fdb.meta)
}

func TestLoaderIdempotentRebuild(t *testing.T) {
	fdb := newFakeDB()
	loader := NewLoader(fdb, Config{})

	first, err := loader.Load(context.Background(), SchemaSQL, sampleTables(5))
	require.NoError(t, err)
	second, err := loader.Load(context.Background(), SchemaSQL, sampleTables(5))
	require.NoError(t, err)

	assert.Equal(t, first.Rows, second.Rows)
	assert.Len(t, fdb.tables[TableFacts], 3)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestLoaderRollsBackOnCopyError(t *testing.T) {
	fdb := newFakeDB()
	fdb.failCopy = errors.New("connection reset")
	loader := NewLoader(fdb, Config{})

	_, err := loader.Load(context.Background(), SchemaSQL, sampleTables(5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load "+TableDates)
	assert.Zero(t, fdb.commits)
	assert.Equal(t, 1, fdb.rollback)
	assert.Empty(t, fdb.tables)
}

func TestLoaderRollsBackWhenCanceled(t *testing.T) {
	fdb := newFakeDB()
	loader := NewLoader(fdb, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fdb.failCopy = context.Canceled

	_, err := loader.Load(ctx, SchemaSQL, sampleTables(5))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fdb.rollback)
}

func TestSchemaSQLDeclaresConstraints(t *testing.T) {
	for _, name := range TableNames {
		assert.Contains(t, SchemaSQL, "DROP TABLE IF EXISTS "+name)
		assert.Contains(t, SchemaSQL, "CREATE TABLE "+name)
	}
	assert.Contains(t, SchemaSQL, "UNIQUE (order_id, order_item_id)")
	assert.Contains(t, SchemaSQL, "CHECK (review_score BETWEEN 1 AND 5)")
	assert.Contains(t, SchemaSQL, "CHECK (is_weekend IN (0, 1))")
	assert.NotContains(t, SchemaSQL, db.MetadataTable)
}

func TestResetDropsTablesAndMetadata(t *testing.T) {
	fdb := newFakeDB()
	_, err := NewLoader(fdb, Config{}).Load(context.Background(), SchemaSQL, sampleTables(5))
	require.NoError(t, err)
	require.NotEmpty(t, fdb.meta[db.KeyRunID])

	require.NoError(t, Reset(context.Background(), fdb))

	assert.Equal(t, 2, fdb.commits)
	assert.Empty(t, fdb.tables)
	assert.Empty(t, fdb.meta)
}

func TestDropSchemaSQLCoversEveryTable(t *testing.T) {
	for _, name := range TableNames {
		assert.Contains(t, DropSchemaSQL, "DROP TABLE IF EXISTS "+name)
	}
}
