// Package executor spawns plugin subprocesses and establishes a gRPC client
// connection to each, with port allocation, linear-plus-jitter backoff, and
// spawn-retry on connection failure.
package executor

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config holds the tunable parameters for plugin spawn/connect.
type Config struct {
	MaxSpawnAttempts int
	MaxConnAttempts  int
	PortRangeStart   uint16
	PortRangeEnd     uint16 // exclusive
	BackoffInterval  time.Duration
	JitterPercent    int
}

// Handle owns a running plugin subprocess and its gRPC connection. Dropping
// a handle (Close) SIGKILLs the child and releases its port.
type Handle struct {
	Port int
	Conn *grpc.ClientConn

	cmd     *exec.Cmd
	release func()
}

// Close terminates the child process and releases its port. Safe to call
// more than once.
func (h *Handle) Close() error {
	if h.Conn != nil {
		_ = h.Conn.Close()
	}
	var err error
	if h.cmd != nil && h.cmd.Process != nil {
		err = h.cmd.Process.Kill()
	}
	if h.release != nil {
		h.release()
	}
	return err
}

// Executor allocates ports and spawns/connects plugin subprocesses.
type Executor struct {
	cfg Config
	log hclog.Logger

	mu        sync.Mutex
	assigned  map[uint16]bool
	rng       *rand.Rand
}

// New validates cfg and returns an Executor. jitter-percent must be in
// [0, 100]; violations are rejected here, per spec.md §4.2 invariants.
func New(cfg Config, log hclog.Logger) (*Executor, error) {
	if cfg.JitterPercent < 0 || cfg.JitterPercent > 100 {
		return nil, &Error{Kind: InvalidJitter, Msg: fmt.Sprintf("jitter_percent must be in [0,100], got %d", cfg.JitterPercent)}
	}
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Executor{
		cfg:      cfg,
		log:      log,
		assigned: make(map[uint16]bool),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// getAvailablePort returns a port in the configured range that this executor
// has not already assigned and that is currently bindable on 127.0.0.1. This
// check-then-spawn sequence is an inherent TOCTOU (spec.md §4.2 step 1);
// spawn-retry in Start compensates.
func (e *Executor) getAvailablePort() (uint16, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for p := e.cfg.PortRangeStart; p < e.cfg.PortRangeEnd; p++ {
		if e.assigned[p] {
			continue
		}
		ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(int(p)))
		if err != nil {
			continue
		}
		ln.Close()
		e.assigned[p] = true
		return p, nil
	}
	return 0, &Error{Kind: NoFreePort, Msg: "no free port in configured range"}
}

func (e *Executor) releasePort(p uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.assigned, p)
}

// Start spawns entrypoint with --port <N> and returns a connected Handle,
// retrying with linear-plus-jitter backoff on connection failure and
// respawning on a fresh port up to MaxSpawnAttempts times, per spec.md §4.2.
func (e *Executor) Start(ctx context.Context, entrypoint string) (*Handle, error) {
	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxSpawnAttempts; attempt++ {
		port, err := e.getAvailablePort()
		if err != nil {
			return nil, err
		}

		cmd := exec.CommandContext(ctx, entrypoint, "--port", strconv.Itoa(int(port)))
		if err := cmd.Start(); err != nil {
			e.releasePort(port)
			lastErr = &Error{Kind: SpawnFailed, Msg: entrypoint, Err: err}
			continue
		}

		conn, err := e.connectWithBackoff(ctx, port)
		if err != nil {
			_ = cmd.Process.Kill()
			e.releasePort(port)
			lastErr = err
			continue
		}

		return &Handle{
			Port:    int(port),
			Conn:    conn,
			cmd:     cmd,
			release: func() { e.releasePort(port) },
		}, nil
	}
	return nil, &Error{Kind: SpawnExhausted, Msg: fmt.Sprintf("%s after %d attempts", entrypoint, e.cfg.MaxSpawnAttempts), Err: lastErr}
}

func (e *Executor) connectWithBackoff(ctx context.Context, port uint16) (*grpc.ClientConn, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxConnAttempts; attempt++ {
		delay := backoffDelay(e.cfg.BackoffInterval, attempt, e.cfg.JitterPercent, e.rng)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		dialCtx, cancel := context.WithTimeout(ctx, e.cfg.BackoffInterval+50*time.Millisecond)
		conn, err := grpc.DialContext(dialCtx, addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithBlock(),
		)
		cancel()
		if err == nil {
			return conn, nil
		}
		lastErr = err
		e.log.Debug("plugin connect attempt failed", "addr", addr, "attempt", attempt, "err", err)
	}
	return nil, &Error{Kind: ConnectFailed, Msg: addr, Err: lastErr}
}
