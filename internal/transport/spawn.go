package transport

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
)

// SpawnConfig describes what to launch and where. It plays the role of a
// cluster launch config, generalized from "spawn a Node/Bun interpreter on
// this machine" to "spawn this binary's worker mode on this node, local or
// remote".
type SpawnConfig struct {
	// Self is the path to the currently-running pbala binary (os.Executable()),
	// re-exec'd in worker mode on the target node.
	Self string
	// Host is the node to spawn on. "", "localhost" or "127.0.0.1" spawns
	// locally via exec.Command; anything else is launched with
	// `ssh <host> <self> ...`.
	Host string
	// Args are appended after Self (or after "ssh host self") — the worker's
	// own subcommand and flags (__worker, --worker-id, --master-addr, ...).
	Args []string
	// Env entries (key=value) appended to the child's environment.
	Env []string
}

var spawnSeq int64

// NextSpawnSeq returns a monotonically increasing id, starting at 0. The
// master's spawn phase assigns WorkerIDs with its own counter, not this one.
func NextSpawnSeq() int {
	return int(atomic.AddInt64(&spawnSeq, 1)) - 1
}

// Spawn launches the worker process described by cfg and returns its
// *exec.Cmd, already Start()ed, so the caller can supervise it with Wait()
// alongside the worker's eventual dial-back connection. On Start failure
// the caller is expected to report E_PVM_SPAWN and halt the cluster — any
// spawn failure halts the whole run, unlike a per-task fork failure.
func Spawn(ctx context.Context, cfg SpawnConfig) (*exec.Cmd, error) {
	runner, args := resolveSpawnCommand(cfg)

	cmd := exec.CommandContext(ctx, runner, args...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s on %s: %w", cfg.Self, displayHost(cfg.Host), err)
	}
	return cmd, nil
}

// resolveSpawnCommand mirrors cluster.resolveRunner/buildArgs: pick the
// program to exec and assemble its argv, branching on whether the target is
// this machine or a remote node reached over ssh.
func resolveSpawnCommand(cfg SpawnConfig) (string, []string) {
	if isLocal(cfg.Host) {
		return cfg.Self, cfg.Args
	}
	args := append([]string{cfg.Host, cfg.Self}, cfg.Args...)
	return "ssh", args
}

func isLocal(host string) bool {
	return host == "" || host == "localhost" || host == "127.0.0.1"
}

func displayHost(host string) string {
	if isLocal(host) {
		return "localhost"
	}
	return host
}
