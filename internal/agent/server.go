package agent

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/shellcamp/shellcamp/internal/protocol"
)

const handshakeTimeout = 10 * time.Second

// Serve runs the agent end to end: listen on the control port, accept one
// authenticated connection, configure the session from its first message and
// answer requests until STOP or disconnect. There is exactly one host per
// sandbox, so no second connection is ever accepted.
func (a *Agent) Serve(ctx context.Context) error {
	secret, err := os.ReadFile(filepath.Join(a.dataDir, protocol.SecretFile))
	if err != nil {
		return fmt.Errorf("failed to read control secret: %w", err)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort("0.0.0.0", protocol.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on control port: %w", err)
	}
	defer listener.Close()
	a.logger.Info("agent listening", zap.String("port", protocol.Port))

	raw, err := listener.Accept()
	if err != nil {
		return fmt.Errorf("failed to accept control connection: %w", err)
	}
	conn := protocol.NewConn(raw)
	defer conn.Close()

	if err := conn.ServerHandshake(secret, handshakeTimeout); err != nil {
		return err
	}
	a.logger.Info("control channel authenticated")
	return a.serve(ctx, conn)
}

// serve is the dispatch loop. The first request must configure the agent;
// after that, handler failures travel back as typed error responses while
// the loop keeps serving. Only protocol violations and a dead connection end
// the session early.
func (a *Agent) serve(ctx context.Context, conn *protocol.Conn) error {
	req, err := a.readRequest(conn)
	if err != nil {
		return err
	}

	var resp protocol.Response
	switch first := req.(type) {
	case protocol.SetupRequest:
		puzzles, err := a.setup(first)
		resp = a.respond(first, puzzles, err)
	case protocol.RestoreRequest:
		resp = a.respond(first, nil, a.restore(first))
	default:
		err := fmt.Errorf("expected SETUP or RESTORE as the first request, got %s", req.GetType())
		a.reply(conn, protocol.NewErrorResponse(err))
		return err
	}
	if err := conn.WriteJSON(resp); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	for {
		req, err := a.readRequest(conn)
		if err != nil {
			return err
		}

		var resp protocol.Response
		switch r := req.(type) {
		case protocol.StopRequest:
			// STOP ends the loop without a response.
			a.logger.Info("session stopped")
			return nil
		case protocol.GenerateRequest:
			puzzles, err := a.generate(r.Generators)
			resp = a.respond(r, puzzles, err)
		case protocol.ConnectToShellRequest:
			pid, err := a.connectToShell(ctx, r.Name)
			resp = a.respond(r, protocol.ConnectToShellResult{PID: pid}, err)
		case protocol.SolveRequest:
			result, err := a.solve(r.PuzzleID, r.Flag)
			resp = a.respond(r, result, err)
		case protocol.StudentCwdRequest:
			cwd, err := a.studentCwd()
			resp = a.respond(r, protocol.StudentCwdResult{Path: cwd}, err)
		case protocol.FilesRequest:
			infos, err := a.files(r.Folder)
			resp = a.respond(r, infos, err)
		default:
			// SETUP and RESTORE are only valid as the first request.
			err := fmt.Errorf("%s arrived on an already configured session", req.GetType())
			a.reply(conn, protocol.NewErrorResponse(err))
			return err
		}
		if err := conn.WriteJSON(resp); err != nil {
			return fmt.Errorf("failed to send response: %w", err)
		}
	}
}

// readRequest reads and decodes the next frame. An undecodable frame is
// answered with an error before the session ends; arguing with a host that
// speaks a different protocol is pointless.
func (a *Agent) readRequest(conn *protocol.Conn) (protocol.Request, error) {
	raw, err := conn.ReadRaw()
	if err != nil {
		return nil, fmt.Errorf("control connection lost: %w", err)
	}
	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		a.reply(conn, protocol.NewErrorResponse(err))
		return nil, err
	}
	return req, nil
}

// respond wraps a handler's outcome in a wire response and logs failures to
// the container log, where the host can surface them.
func (a *Agent) respond(req protocol.Request, result any, err error) protocol.Response {
	if err != nil {
		a.logger.Warn("request failed",
			zap.String("request", string(req.GetType())),
			zap.Error(err))
		return protocol.NewErrorResponse(err)
	}
	resp, err := protocol.NewResultResponse(result)
	if err != nil {
		a.logger.Error("failed to encode result",
			zap.String("request", string(req.GetType())),
			zap.Error(err))
		return protocol.NewErrorResponse(err)
	}
	return resp
}

// reply sends a response where the session is already lost; the write is
// best effort.
func (a *Agent) reply(conn *protocol.Conn, resp protocol.Response) {
	if err := conn.WriteJSON(resp); err != nil {
		a.logger.Warn("failed to send final response", zap.Error(err))
	}
}
