package db

import (
	"strings"
	"testing"
)

func TestLoadMigrations(t *testing.T) {
	ms, err := LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(ms) == 0 {
		t.Fatal("expected at least one migration")
	}
	if ms[0].Version != 1 || ms[0].Name != "init" {
		t.Fatalf("first migration = %d_%s", ms[0].Version, ms[0].Name)
	}
	// The double-booking guarantee lives in this index.
	if !strings.Contains(ms[0].SQL, "appointments_pro_slot_blocking") {
		t.Fatal("schema is missing the blocking slot unique index")
	}
}

func TestParseMigrationName(t *testing.T) {
	m, err := parseMigrationName("0042_add_tours.sql")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Version != 42 || m.Name != "add_tours" {
		t.Fatalf("got %+v", m)
	}

	for _, bad := range []string{"init.sql", "x1_init.sql"} {
		if _, err := parseMigrationName(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
