package repository

import "testing"

func TestBuildLikeConditionByDialect(t *testing.T) {
	condition, argCount := buildLikeConditionByDialect("sqlite", []string{"email", " ", "display_name"})
	if argCount != 2 {
		t.Fatalf("arg count want 2 got %d", argCount)
	}
	if condition != "(email LIKE ? OR display_name LIKE ?)" {
		t.Fatalf("unexpected sqlite condition: %s", condition)
	}

	condition, _ = buildLikeConditionByDialect("postgres", []string{"email"})
	if condition != "(email ILIKE ?)" {
		t.Fatalf("unexpected postgres condition: %s", condition)
	}

	if condition, argCount = buildLikeConditionByDialect("sqlite", nil); condition != "" || argCount != 0 {
		t.Fatalf("empty columns should build nothing, got %q %d", condition, argCount)
	}
}

func TestDBDialectNameDefaultsToSQLite(t *testing.T) {
	if got := dbDialectName(nil); got != "sqlite" {
		t.Fatalf("nil db dialect want sqlite got %s", got)
	}
}

func TestRepeatLikeArgs(t *testing.T) {
	args := repeatLikeArgs("%agent%", 3)
	if len(args) != 3 || args[2] != "%agent%" {
		t.Fatalf("unexpected args: %v", args)
	}
}
