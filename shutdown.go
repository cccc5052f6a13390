// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqlitekit

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// registry tracks handles that Shutdown must close.
var registry = struct {
	sync.Mutex
	handles map[*DB]struct{}
}{handles: make(map[*DB]struct{})}

func register(db *DB) {
	registry.Lock()
	defer registry.Unlock()
	registry.handles[db] = struct{}{}
}

func unregister(db *DB) {
	registry.Lock()
	defer registry.Unlock()
	delete(registry.handles, db)
}

// Shutdown closes every handle opened by Connect that is still open,
// discarding errors.
func Shutdown() {
	registry.Lock()
	handles := make([]*DB, 0, len(registry.handles))
	for db := range registry.handles {
		handles = append(handles, db)
	}
	registry.Unlock()

	// Close takes the registry lock to unregister, so it runs unlocked here.
	for _, db := range handles {
		Disconnect(db)
	}
}

// CloseOnSignal runs Shutdown when the process receives one of sigs
// (SIGINT and SIGTERM if none are given) or when ctx is done.
// After a signal the default handler is restored and the signal is raised
// again, so the process terminates as it would have without the hook.
// The returned stop function removes the hook without closing anything.
func CloseOnSignal(ctx context.Context, sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	done := make(chan struct{})
	var once sync.Once
	stop = func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}

	go func() {
		select {
		case sig := <-ch:
			Shutdown()
			stop()
			reraise(sig)
		case <-ctx.Done():
			Shutdown()
			stop()
		case <-done:
		}
	}()

	return stop
}

// reraise delivers sig to the current process with default handling in
// place. Platforms that cannot signal themselves exit with status 1.
func reraise(sig os.Signal) {
	p, err := os.FindProcess(os.Getpid())
	if err == nil {
		err = p.Signal(sig)
	}
	if err != nil {
		os.Exit(1)
	}
}
