// Copyright (c) 2026 Michael D Henderson. All rights reserved.

//go:build !mattn

package sqlitekit

import (
	"fmt"
	"strconv"
	"strings"
)

// driverName is passed to sqlx.Open.
const driverName = "sqlite"

// pragma represents a SQLite pragma setting.
type pragma struct {
	name  string
	value string
}

// pragmas returns the connection pragmas for cfg in modernc naming.
func (cfg Config) pragmas() []pragma {
	list := []pragma{
		{name: "journal_mode", value: cfg.JournalMode},
	}
	if cfg.BusyTimeout > 0 {
		list = append(list, pragma{name: "busy_timeout", value: strconv.FormatInt(cfg.BusyTimeout.Milliseconds(), 10)})
	}
	if cfg.ReadOnly {
		list = append(list, pragma{name: "query_only", value: "1"})
	}
	return list
}

// buildDSN constructs a DSN for modernc.org/sqlite.
// modernc uses the syntax: file:path?_pragma=name(value)&_pragma=name2(value2)
func buildDSN(path string, pragmas []pragma) string {
	var sb strings.Builder
	sb.WriteString(databaseURI(path))

	// a caller's URI may already carry query parameters
	sep := "?"
	if strings.Contains(sb.String(), "?") {
		sep = "&"
	}
	for _, p := range pragmas {
		sb.WriteString(sep)
		fmt.Fprintf(&sb, "_pragma=%s(%s)", p.name, p.value)
		sep = "&"
	}

	return sb.String()
}
