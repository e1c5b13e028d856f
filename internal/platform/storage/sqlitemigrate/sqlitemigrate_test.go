package sqlitemigrate

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func queryInt64(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var value int64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	return value
}

func TestApplyRecordsMigrations(t *testing.T) {
	db := openInMemoryDB(t)

	migrations := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE items(id TEXT PRIMARY KEY);"),
		},
	}

	if err := Apply(db, migrations); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if got := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); got != 1 {
		t.Fatalf("expected 1 migration row, got %d", got)
	}
	if got := queryInt64(t, db, "SELECT COUNT(*) FROM items"); got != 0 {
		t.Fatalf("expected empty items table, got %d rows", got)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	db := openInMemoryDB(t)

	migrations := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE items(id TEXT PRIMARY KEY);"),
		},
	}

	if err := Apply(db, migrations); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := Apply(db, migrations); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	if got := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); got != 1 {
		t.Fatalf("expected 1 migration row after reapply, got %d", got)
	}
}

func TestApplyRunsInNameOrder(t *testing.T) {
	db := openInMemoryDB(t)

	migrations := fstest.MapFS{
		"002_insert.sql": &fstest.MapFile{
			Data: []byte("INSERT INTO items(id) VALUES ('a');"),
		},
		"001_create.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE items(id TEXT PRIMARY KEY);"),
		},
	}

	if err := Apply(db, migrations); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if got := queryInt64(t, db, "SELECT COUNT(*) FROM items"); got != 1 {
		t.Fatalf("expected 1 item row, got %d", got)
	}
}
