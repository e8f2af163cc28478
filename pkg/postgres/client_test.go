package postgres

import (
	"context"
	"testing"
)

func TestBuildDSNEscapesPassword(t *testing.T) {
	got := BuildDSN(ClientConfig{
		Host: "db", Port: 5432, Database: "market",
		User: "trader", Password: "p@ss/word", SSLMode: "disable",
	})
	want := "postgres://trader:p%40ss%2Fword@db:5432/market?sslmode=disable"
	if got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}
}

func TestNewClientRequiresDatabase(t *testing.T) {
	if _, err := NewClient(context.Background(), WithHost("db")); err == nil {
		t.Fatalf("expected error without database")
	}
}
