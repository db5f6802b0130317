package tutorial

import (
	"context"
	"crypto/hmac"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/shellcamp/shellcamp/internal/protocol"
)

const notifyDeadline = 30 * time.Second

// serveNotify accepts prompt notifications for the life of the session. The
// loop handles one connection at a time: the shell hook blocks the student's
// next prompt until the snapshot behind the current one is recorded, so
// commands can never land in the middle of a commit.
func (t *Tutorial) serveNotify(listener net.Listener) {
	for {
		raw, err := listener.Accept()
		if err != nil {
			return
		}
		t.handleNotify(raw)
	}
}

func (t *Tutorial) handleNotify(raw net.Conn) {
	defer raw.Close()
	_ = raw.SetDeadline(time.Now().Add(notifyDeadline))
	conn := protocol.NewConn(raw)

	var report protocol.NotifyReport
	if err := conn.ReadJSON(&report); err != nil {
		t.logger.Warn("failed to read prompt notification", zap.Error(err))
		return
	}
	if !hmac.Equal([]byte(report.Token), []byte(t.notifyToken)) {
		t.logger.Warn("rejected prompt notification with a bad token")
		_ = conn.WriteJSON(protocol.NotifyAck{OK: false})
		return
	}

	err := t.recordPrompt(context.Background(), report.Command)
	if err != nil {
		t.logger.Warn("failed to checkpoint after prompt", zap.Error(err))
	}
	_ = conn.WriteJSON(protocol.NotifyAck{OK: err == nil})
}

// recordPrompt logs the student's last command to the transcript and
// snapshots the filesystem. A transcript failure is logged but does not block
// the snapshot.
func (t *Tutorial) recordPrompt(ctx context.Context, command string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.active(); err != nil {
		return err
	}
	if command != "" && t.store != nil {
		t.commandSeq++
		if err := t.store.RecordCommand(ctx, t.sessionID, t.commandSeq, command); err != nil {
			t.logger.Warn("failed to record command in transcript", zap.Error(err))
		}
	}
	return t.undo.Commit(ctx)
}
