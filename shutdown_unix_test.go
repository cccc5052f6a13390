// Copyright (c) 2026 Michael D Henderson. All rights reserved.

//go:build unix

package sqlitekit_test

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/mdhender/sqlitekit"
)

// signalChildEnv carries the database path to the re-executed test binary.
const signalChildEnv = "SQLITEKIT_SIGNAL_CHILD_DB"

// TestCloseOnSignal_Signal tests that SIGTERM closes registered handles and
// then terminates the process by the same signal.
func TestCloseOnSignal_Signal(t *testing.T) {
	if path := os.Getenv(signalChildEnv); path != "" {
		runSignalChild(path)
		return
	}

	path := filepath.Join(t.TempDir(), "signal.db")
	cmd := exec.Command(os.Args[0], "-test.run=^TestCloseOnSignal_Signal$")
	cmd.Env = append(os.Environ(), signalChildEnv+"="+path)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatalf("stdout pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start child: %v", err)
	}

	ready := make(chan bool, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if scanner.Text() == "ready" {
				ready <- true
				break
			}
		}
		close(ready)
	}()
	select {
	case ok := <-ready:
		if !ok {
			cmd.Process.Kill()
			cmd.Wait()
			t.Fatal("child exited before it was ready")
		}
	case <-time.After(30 * time.Second):
		cmd.Process.Kill()
		cmd.Wait()
		t.Fatal("child was not ready in time")
	}

	if _, err := os.Stat(path + "-wal"); err != nil {
		t.Fatalf("expected WAL file while the child holds the database open: %v", err)
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal child: %v", err)
	}
	err = cmd.Wait()

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected the child to be killed by a signal, got %v", err)
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() || status.Signal() != syscall.SIGTERM {
		t.Fatalf("expected termination by SIGTERM, got %v", exitErr)
	}

	// closing the last connection checkpoints and removes the WAL file
	if _, err := os.Stat(path + "-wal"); !os.IsNotExist(err) {
		t.Errorf("WAL file should be removed once the handle is closed: %v", err)
	}
}

// runSignalChild opens path, installs the hook and waits to be signalled.
func runSignalChild(path string) {
	ctx := context.Background()
	db, err := sqlitekit.Connect(ctx, sqlitekit.Config{Path: path})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if _, err := db.Run(ctx, `CREATE TABLE t (x)`, false); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	sqlitekit.CloseOnSignal(ctx)

	fmt.Println("ready")
	time.Sleep(30 * time.Second)
	os.Exit(3)
}
