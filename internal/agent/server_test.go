package agent

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/shellcamp/shellcamp/internal/protocol"
	"github.com/shellcamp/shellcamp/internal/puzzle"
)

// startServe runs the dispatch loop against one end of a pipe, as if the
// handshake had just finished.
func startServe(t *testing.T, a *Agent) (*protocol.Conn, <-chan error) {
	t.Helper()
	client, server := net.Pipe()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.serve(context.Background(), protocol.NewConn(server))
	}()
	conn := protocol.NewConn(client)
	t.Cleanup(func() { conn.Close() })
	return conn, serveErr
}

func roundTrip(t *testing.T, conn *protocol.Conn, req protocol.Request) protocol.Response {
	t.Helper()
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	var resp protocol.Response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return resp
}

func TestServeSession(t *testing.T) {
	a, home := newTestAgent(t)
	conn, serveErr := startServe(t, a)

	resp := roundTrip(t, conn, testSetupRequest(home, currentUser(t), []string{"gen.flag"}))
	var puzzles []*puzzle.Data
	if err := resp.Decode(&puzzles); err != nil {
		t.Fatalf("SETUP failed: %v", err)
	}
	if len(puzzles) != 1 || puzzles[0].Template != "gen.flag" {
		t.Fatalf("Expected one gen.flag puzzle, got %+v", puzzles)
	}

	// A failed request comes back as an error response; the session
	// keeps serving afterwards.
	resp = roundTrip(t, conn, protocol.NewSolveRequest("ghost", nil))
	if err := resp.Decode(nil); err == nil {
		t.Fatal("Expected an error response for an unknown puzzle")
	}

	flag := "tea"
	resp = roundTrip(t, conn, protocol.NewSolveRequest(puzzles[0].ID, &flag))
	var result protocol.SolveResult
	if err := resp.Decode(&result); err != nil {
		t.Fatalf("SOLVE failed: %v", err)
	}
	if !result.Solved || result.Feedback != "Correct!" {
		t.Errorf("Expected a solved puzzle, got %+v", result)
	}

	resp = roundTrip(t, conn, protocol.NewStudentCwdRequest())
	var cwd protocol.StudentCwdResult
	if err := resp.Decode(&cwd); err != nil {
		t.Fatalf("GET_STUDENT_CWD failed: %v", err)
	}
	if cwd.Path != "" {
		t.Errorf("Expected no tracked shell, got %q", cwd.Path)
	}

	if err := conn.WriteJSON(protocol.NewStopRequest()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if err := <-serveErr; err != nil {
		t.Errorf("Expected a clean stop, got %v", err)
	}
}

func TestServeRequiresSetupFirst(t *testing.T) {
	a, _ := newTestAgent(t)
	conn, serveErr := startServe(t, a)

	resp := roundTrip(t, conn, protocol.NewGenerateRequest([]string{"gen.flag"}))
	err := resp.Decode(nil)
	if err == nil {
		t.Fatal("Expected an error response")
	}
	if !strings.Contains(err.Error(), "SETUP or RESTORE") {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := <-serveErr; err == nil {
		t.Error("Expected the session to end")
	}
}

func TestServeRejectsSecondSetup(t *testing.T) {
	a, home := newTestAgent(t)
	conn, serveErr := startServe(t, a)

	resp := roundTrip(t, conn, testSetupRequest(home, currentUser(t), []string{"gen.flag"}))
	if err := resp.Decode(nil); err != nil {
		t.Fatalf("SETUP failed: %v", err)
	}
	resp = roundTrip(t, conn, testSetupRequest(home, currentUser(t), []string{"gen.flag"}))
	if err := resp.Decode(nil); err == nil {
		t.Fatal("Expected an error response for a second SETUP")
	}
	if err := <-serveErr; err == nil {
		t.Error("Expected the session to end")
	}
}
