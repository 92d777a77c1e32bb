//go:build integration
// +build integration

package integration

import (
	"context"
	"os"
	"os/exec"
	"testing"
)

// restartService bounces one compose service. E2E_COMPOSE_FILE selects the
// compose file when the stack was not started from the working directory.
func restartService(t *testing.T, ctx context.Context, service string) {
	t.Helper()

	args := []string{"compose"}
	if f := os.Getenv("E2E_COMPOSE_FILE"); f != "" {
		args = append(args, "-f", f)
	}
	args = append(args, "restart", service)

	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		t.Fatalf("docker %v: %v\n%s", args, err, string(out))
	}
}
