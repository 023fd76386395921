package db_test

import (
	"strings"
	"testing"

	"github.com/atinyakov/feynmind/internal/db"
)

// A failed InitPostgres never hands back a handle.
func TestInitPostgres_ErrorPaths(t *testing.T) {
	cases := []struct {
		name       string
		dsn        string
		wantSubstr string
	}{
		{"invalid DSN", "some=random", "ping postgres"},
		{"empty DSN", "", "ping postgres"},
		{"malformed URL", "postgres://%zz", "postgres"},
		{"unreachable host", "postgres://study@127.0.0.1:1/study?sslmode=disable&connect_timeout=1", "ping postgres"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn, err := db.InitPostgres(tc.dsn)
			if conn != nil {
				t.Errorf("InitPostgres(%q) returned a handle on error", tc.dsn)
			}
			if err == nil {
				t.Fatalf("InitPostgres(%q) did not return error", tc.dsn)
			}
			if !strings.Contains(err.Error(), tc.wantSubstr) {
				t.Errorf("InitPostgres(%q) error = %q; want substring %q", tc.dsn, err.Error(), tc.wantSubstr)
			}
		})
	}
}
