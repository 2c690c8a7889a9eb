package utils

import "testing"

func TestSplitStatements(t *testing.T) {
	got := SplitStatements(`
CREATE TABLE a (id int);

CREATE INDEX a_idx ON a (id);
`)
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[1] != "CREATE INDEX a_idx ON a (id)" {
		t.Fatalf("unexpected statement %q", got[1])
	}
}

func TestPoolDefaults(t *testing.T) {
	c := PostgresPoolConfig{}.withDefaults()
	if c.MaxOpenConns != 25 || c.PingTimeout <= 0 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}
