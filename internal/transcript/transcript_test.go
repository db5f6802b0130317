package transcript

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "transcript.db")

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	start := time.Now()
	if err := store.BeginSession(ctx, "session-1", "shellcamp:latest", start); err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}

	if err := store.RecordCommand(ctx, "session-1", 1, "ls -la"); err != nil {
		t.Fatalf("RecordCommand failed: %v", err)
	}
	if err := store.RecordCommand(ctx, "session-1", 2, "mv A.txt B.txt"); err != nil {
		t.Fatalf("RecordCommand failed: %v", err)
	}

	flag := "tea"
	if err := store.RecordSolve(ctx, "session-1", "puzzle-1", "pack.move", nil); err != nil {
		t.Fatalf("RecordSolve failed: %v", err)
	}
	if err := store.RecordSolve(ctx, "session-1", "puzzle-2", "pack.flag", &flag); err != nil {
		t.Fatalf("RecordSolve with flag failed: %v", err)
	}

	if err := store.FinishSession(ctx, "session-1", start.Add(time.Minute), 3, 2, false); err != nil {
		t.Fatalf("FinishSession failed: %v", err)
	}

	commands, err := store.SessionCommands(ctx, "session-1")
	if err != nil {
		t.Fatalf("SessionCommands failed: %v", err)
	}
	if len(commands) != 2 {
		t.Fatalf("Expected 2 commands, got %d", len(commands))
	}
	if commands[0].Line != "ls -la" || commands[1].Line != "mv A.txt B.txt" {
		t.Errorf("Commands out of order: %+v", commands)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The record survives reopening.
	store, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	commands, err = store.SessionCommands(ctx, "session-1")
	if err != nil {
		t.Fatalf("SessionCommands after reopen failed: %v", err)
	}
	if len(commands) != 2 {
		t.Errorf("Expected 2 commands after reopen, got %d", len(commands))
	}
}

func TestSessionCommandsEmpty(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "transcript.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	commands, err := store.SessionCommands(ctx, "ghost")
	if err != nil {
		t.Fatalf("SessionCommands failed: %v", err)
	}
	if len(commands) != 0 {
		t.Errorf("Expected no commands, got %d", len(commands))
	}
}
