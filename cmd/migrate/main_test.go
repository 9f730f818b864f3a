package main

import (
	"context"
	"testing"

	"github.com/angelmondragon/fuelstation-backend/pkg/migrate"
)

func TestDBCommandsCoverGooseVerbs(t *testing.T) {
	cmds := dbCommands("")
	for _, name := range []string{"up", "down", "status", "version"} {
		if _, ok := cmds[name]; !ok {
			t.Fatalf("missing command %s", name)
		}
	}
	if _, ok := cmds["create"]; ok {
		t.Fatal("create must not need a database")
	}
}

func TestVersionCommandRequiresTarget(t *testing.T) {
	if err := dbCommands("")["version"](context.Background(), nil, migrate.DefaultDir); err == nil {
		t.Fatal("expected missing -version to fail before touching the database")
	}
}

func TestValidateMigrationsUsesEmbeddedSet(t *testing.T) {
	if err := validateMigrations(migrate.DefaultDir); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
}
