package transcript

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "transcript.db")
	store, err := Open(DialectSQLite, path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSessionRoundTrip(t *testing.T) {
	store := openTestStore(t)

	sess, err := store.BeginSession("127.0.0.1:4000")
	if err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}
	if sess.ID() == "" {
		t.Fatal("session ID should not be empty")
	}

	firstID, err := sess.Record(DirectionSent, "look")
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	secondID, err := sess.Record(DirectionReceived, "You are in the Town Square.")
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if firstID <= 0 || secondID <= firstID {
		t.Errorf("line IDs should be positive and increasing, got %d then %d", firstID, secondID)
	}
	if err := sess.End(); err != nil {
		t.Fatalf("End returned error: %v", err)
	}

	lines, err := store.Lines(sess.ID())
	if err != nil {
		t.Fatalf("Lines returned error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Direction != DirectionSent || lines[0].Text != "look" {
		t.Errorf("first line = %+v, want sent/look", lines[0])
	}
	if lines[1].Direction != DirectionReceived || lines[1].Text != "You are in the Town Square." {
		t.Errorf("second line = %+v, want received room description", lines[1])
	}
}

func TestLinesPreserveOrder(t *testing.T) {
	store := openTestStore(t)

	sess, err := store.BeginSession("127.0.0.1:4000")
	if err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}

	want := []string{"north", "south", "east", "west", "look"}
	for _, text := range want {
		if _, err := sess.Record(DirectionSent, text); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	lines, err := store.Lines(sess.ID())
	if err != nil {
		t.Fatalf("Lines returned error: %v", err)
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i, text := range want {
		if lines[i].Text != text {
			t.Errorf("line %d = %q, want %q", i, lines[i].Text, text)
		}
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	store := openTestStore(t)

	a, err := store.BeginSession("127.0.0.1:4000")
	if err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}
	b, err := store.BeginSession("127.0.0.1:4001")
	if err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}

	if a.ID() == b.ID() {
		t.Fatal("session IDs must be unique")
	}

	a.Record(DirectionSent, "from a")
	b.Record(DirectionSent, "from b")

	linesA, err := store.Lines(a.ID())
	if err != nil {
		t.Fatalf("Lines returned error: %v", err)
	}
	if len(linesA) != 1 || linesA[0].Text != "from a" {
		t.Errorf("session a lines = %+v", linesA)
	}
}

func TestDialectInsertPaths(t *testing.T) {
	sqlite := &SQLiteDialect{}
	if !sqlite.SupportsLastInsertID() {
		t.Error("sqlite should support LastInsertId")
	}
	if got := sqlite.ReturningClause("id"); got != "" {
		t.Errorf("sqlite returning clause = %q, want empty", got)
	}
	if got := sqlite.SerialColumn(); got != "INTEGER PRIMARY KEY AUTOINCREMENT" {
		t.Errorf("sqlite serial column = %q", got)
	}

	pg := &PostgresDialect{}
	if pg.SupportsLastInsertID() {
		t.Error("postgres should not support LastInsertId")
	}
	if got := pg.ReturningClause("id"); got != " RETURNING id" {
		t.Errorf("postgres returning clause = %q, want %q", got, " RETURNING id")
	}
	if got := pg.SerialColumn(); got != "BIGSERIAL PRIMARY KEY" {
		t.Errorf("postgres serial column = %q", got)
	}
}

func TestRebind(t *testing.T) {
	query := "INSERT INTO lines (a, b, c) VALUES (?, ?, ?)"

	if got := rebind(&SQLiteDialect{}, query); got != query {
		t.Errorf("sqlite rebind changed query: %q", got)
	}

	want := "INSERT INTO lines (a, b, c) VALUES ($1, $2, $3)"
	if got := rebind(&PostgresDialect{}, query); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}
