// Package wireguard talks to the WireGuard tooling: it generates keys,
// reads interface status, renders the interface configuration and reloads it.
package wireguard

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"
)

// Runner executes an external command and returns its trimmed stdout.
type Runner interface {
	Run(ctx context.Context, stdin string, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Log logr.Logger
}

func (r ExecRunner) Run(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	log := r.Log.WithValues("command", name+" "+strings.Join(args, " "))
	log.V(1).Info("running command")

	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error(err, "command failed", "stderr", strings.TrimSpace(stderr.String()))
		return "", fmt.Errorf("run %s: %w", name, err)
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}
