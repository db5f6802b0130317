package sandbox

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// testImage only needs a shell; the training image isn't required for
// lifecycle tests.
const testImage = "alpine:latest"

// skipIfNoDocker skips the test if Docker is unavailable.
func skipIfNoDocker(t *testing.T) {
	t.Helper()
	if err := exec.Command("docker", "info").Run(); err != nil {
		t.Skip("docker not available, skipping integration test")
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	skipIfNoDocker(t)

	m, err := NewManager(Config{Memory: "256m", CPU: "1", StopTimeout: 2 * time.Second}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func launchTestInstance(t *testing.T, m *Manager) *Instance {
	t.Helper()
	ctx := context.Background()

	inst, err := m.Launch(ctx, LaunchSpec{
		Image: testImage,
		User:  "root",
		Home:  "/root",
		Shell: []string{"sh"},
	})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	t.Cleanup(func() {
		_ = m.Stop(context.Background(), inst)
		_ = m.RemoveVolume(context.Background(), inst.Volume)
	})
	return inst
}

func TestManagerLaunchAndExec(t *testing.T) {
	m := newTestManager(t)
	inst := launchTestInstance(t, m)
	ctx := context.Background()

	if inst.Port == "" {
		t.Error("Expected a published port")
	}

	result, err := m.Exec(ctx, inst, "root", []string{"echo", "hello"})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if result.Code != 0 {
		t.Errorf("Expected exit code 0, got %d", result.Code)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Errorf("Expected stdout hello, got %q", result.Stdout)
	}
}

func TestManagerStageFile(t *testing.T) {
	m := newTestManager(t)
	inst := launchTestInstance(t, m)
	ctx := context.Background()

	if err := m.StageFile(ctx, inst, "control_secret", []byte("s3cret"), 0o600, 0, 0); err != nil {
		t.Fatalf("StageFile failed: %v", err)
	}

	result, err := m.Exec(ctx, inst, "root", []string{"cat", DataDir + "/control_secret"})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if result.Stdout != "s3cret" {
		t.Errorf("Expected staged secret, got %q", result.Stdout)
	}
}

func TestManagerCommitRelaunch(t *testing.T) {
	m := newTestManager(t)
	inst := launchTestInstance(t, m)
	ctx := context.Background()

	// Write a marker, snapshot, then destroy the marker.
	if _, err := m.Exec(ctx, inst, "root", []string{"touch", "/root/marker"}); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	ref, err := m.Commit(ctx, inst)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	defer m.RemoveImage(context.Background(), ref)

	if _, err := m.Exec(ctx, inst, "root", []string{"rm", "/root/marker"}); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}

	relaunched, err := m.Relaunch(ctx, inst, ref)
	if err != nil {
		t.Fatalf("Relaunch failed: %v", err)
	}
	t.Cleanup(func() {
		_ = m.Stop(context.Background(), relaunched)
		_ = m.RemoveVolume(context.Background(), relaunched.Volume)
	})

	if relaunched.Volume != inst.Volume {
		t.Errorf("Expected relaunch to keep volume %s, got %s", inst.Volume, relaunched.Volume)
	}

	result, err := m.Exec(ctx, relaunched, "root", []string{"ls", "/root/marker"})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if result.Code != 0 {
		t.Errorf("Expected marker restored by relaunch, ls exited %d: %s", result.Code, result.Stderr)
	}
}

func TestManagerStopIdempotent(t *testing.T) {
	m := newTestManager(t)
	inst := launchTestInstance(t, m)
	ctx := context.Background()

	if err := m.Stop(ctx, inst); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// The container is auto-removed now; stopping again must be a no-op.
	if err := m.Stop(ctx, inst); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}
}
