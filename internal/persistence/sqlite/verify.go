// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
)

// VerifyIntegrity runs PRAGMA quick_check (mode "quick") or integrity_check
// (mode "full") against a read-only handle. It returns nil when the database
// is healthy and the diagnostic rows otherwise.
func VerifyIntegrity(path string, mode string) ([]string, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(2000)", path))
	if err != nil {
		return nil, fmt.Errorf("open database for verification: %w", err)
	}
	defer func() { _ = db.Close() }()

	pragma := "PRAGMA quick_check;"
	if mode == "full" {
		pragma = "PRAGMA integrity_check;"
	}

	rows, err := db.Query(pragma)
	if err != nil {
		return nil, fmt.Errorf("integrity pragma failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []string
	for rows.Next() {
		var res string
		if err := rows.Scan(&res); err != nil {
			return nil, fmt.Errorf("scan integrity row: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("integrity rows: %w", err)
	}

	switch {
	case len(results) == 1 && strings.EqualFold(results[0], "ok"):
		return nil, nil
	case len(results) == 0:
		return []string{"no results returned from integrity check"}, nil
	default:
		return results, nil
	}
}
