package db

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWithSSL(t *testing.T) {
	dsn, err := withSSL("postgres://u:p@host:5432/db", "")
	if err != nil || dsn != "postgres://u:p@host:5432/db" {
		t.Fatalf("no cert: dsn=%q err=%v", dsn, err)
	}

	cert := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(cert, []byte("cert"), 0o600); err != nil {
		t.Fatal(err)
	}
	dsn, err = withSSL("postgres://u:p@host:5432/db?application_name=pagetext", cert)
	if err != nil {
		t.Fatalf("withSSL: %v", err)
	}
	for _, want := range []string{"sslmode=verify-ca", "sslrootcert=", "application_name=pagetext"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %q", dsn, want)
		}
	}

	if _, err := withSSL("postgres://host/db", filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Fatal("missing cert: expected error")
	}
}

func TestNullTime(t *testing.T) {
	if nullTime(time.Time{}) != nil {
		t.Fatal("zero time should be NULL")
	}
	now := time.Now()
	if got, ok := nullTime(now).(time.Time); !ok || !got.Equal(now) {
		t.Fatalf("nullTime(now) = %v", got)
	}
}

func TestBootstrapScriptEmbedded(t *testing.T) {
	b, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		t.Fatalf("read embedded script: %v", err)
	}
	sql := string(b)
	for _, table := range []string{"users", "extraction_runs", "run_chunks", "run_passages", "pagetext_meta"} {
		if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("initdb.sql does not create %s", table)
		}
	}
}
