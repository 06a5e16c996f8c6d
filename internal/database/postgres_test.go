package database

import "testing"

func TestNormalizeDSN(t *testing.T) {
	cases := map[string]string{
		"postgresql+asyncpg://u:p@db:5432/app":  "postgresql://u:p@db:5432/app",
		" postgres+pgx://u:p@db/app ":           "postgres://u:p@db/app",
		"postgres://u:p@db/app?sslmode=disable": "postgres://u:p@db/app?sslmode=disable",
	}

	for in, want := range cases {
		if got := normalizeDSN(in); got != want {
			t.Errorf("normalizeDSN(%q) = %q, want %q", in, got, want)
		}
	}
}
