package agent

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shellcamp/shellcamp/internal/protocol"
)

const notifyTimeout = 30 * time.Second

// Notify reports the student's most recent command to the host, which
// snapshots the filesystem in response. It runs as the student from the
// shell's prompt hook, once per prompt, and blocks until the snapshot is
// done so the next command can never land in the middle of one. With no
// listener address in the environment the hook is a no-op.
func Notify(dataDir, home string) error {
	addr := os.Getenv(protocol.NotifyAddrEnv)
	if addr == "" {
		return nil
	}
	token, err := os.ReadFile(filepath.Join(dataDir, protocol.NotifyTokenFile))
	if os.IsNotExist(err) {
		// The first prompt can fire before the host finishes staging.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read notify token: %w", err)
	}

	raw, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to reach the session host: %w", err)
	}
	if err := raw.SetDeadline(time.Now().Add(notifyTimeout)); err != nil {
		raw.Close()
		return fmt.Errorf("failed to set notify deadline: %w", err)
	}
	conn := protocol.NewConn(raw)
	defer conn.Close()

	report := protocol.NotifyReport{
		Token:   strings.TrimSpace(string(token)),
		Command: lastHistoryLine(home),
	}
	if err := conn.WriteJSON(report); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	var ack protocol.NotifyAck
	if err := conn.ReadJSON(&ack); err != nil {
		return fmt.Errorf("failed to read notification ack: %w", err)
	}
	if !ack.OK {
		return errors.New("session host rejected the notification")
	}
	return nil
}

// lastHistoryLine returns the newest command in the shell history, or ""
// when there is no history yet. The prompt hook appends history before
// notifying, so the file is current.
func lastHistoryLine(home string) string {
	data, err := os.ReadFile(filepath.Join(home, ".bash_history"))
	if err != nil {
		return ""
	}
	lines := strings.Split(string(data), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}
