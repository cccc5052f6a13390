// Copyright (c) 2026 Michael D Henderson. All rights reserved.

// Package sqlitekit is a small convenience layer over an embedded SQLite
// database.
//
// The package covers the plumbing most small tools repeat:
//   - Connect resolves a path (argument, then environment, then in-memory),
//     opens the database and turns on write-ahead logging
//   - Handles are closed automatically on Shutdown or on SIGINT/SIGTERM
//   - Prepare infers how a statement runs from its SQL text
//   - Execute flattens structs, maps and slices into positional parameters
//
// # Basic Usage
//
//	db, err := sqlitekit.Connect(ctx, sqlitekit.Config{Path: "app.db"})
//	if err != nil {
//	    return err
//	}
//	defer sqlitekit.Disconnect(db)
//
//	ins, err := db.Prepare(ctx, `INSERT INTO users (name, email) VALUES (?, ?)`, false)
//	res, err := ins.Execute(ctx, User{Name: "alice", Email: "alice@example.com"})
//
//	sel, err := db.Prepare(ctx, `SELECT * FROM users WHERE id = ?`, true)
//	res, err = sel.Execute(ctx, res.LastInsertID)
//	fmt.Println(res.Row["name"])
//
// # Execution Modes
//
// A statement whose text starts with SELECT is a query. Queries return every
// row (ModeAll) unless the statement was prepared as a singleton, in which
// case they return the first row or nil (ModeGet). Every other statement is a
// mutation (ModeRun) and reports rows changed and the last insert id.
//
// # Close on Exit
//
// Go has no exit hook, so Connect only registers the handle. Install the hook
// once in main; it closes every registered handle when the process receives
// SIGINT or SIGTERM, or when ctx is done:
//
//	func main() {
//	    ctx := context.Background()
//	    defer sqlitekit.CloseOnSignal(ctx)()
//	    defer sqlitekit.Shutdown()
//	    ...
//	}
//
// Without CloseOnSignal or Shutdown, registered handles stay open until the
// process exits.
//
// # Paths
//
// Plain paths are file names and are escaped before they reach SQLite, so
// names containing '?', '#' or '%' open the file they name. Values starting
// with "file:" are passed through as SQLite URIs, which keeps options such as
// "file::memory:?cache=shared".
//
// # Driver Support
//
// This package supports two SQLite drivers via build tags:
//   - modernc.org/sqlite (default, pure Go, no CGO)
//   - github.com/mattn/go-sqlite3 (CGO, use -tags mattn)
//
// You must import the appropriate driver in your application:
//
//	import _ "modernc.org/sqlite"           // default
//	import _ "github.com/mattn/go-sqlite3"  // with -tags mattn
//
// # Configuration
//
// Key Config fields:
//   - Path: database file, ":memory:", or empty to use the environment
//   - EnvVar: env var holding the default path (default: "SQLITE_DB_PATH")
//   - JournalMode: journal_mode pragma (default: "WAL")
//   - ReadOnly, FileMustExist, BusyTimeout: open options
//   - KeepOpenOnExit: leave the handle out of Shutdown
package sqlitekit
