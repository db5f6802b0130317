package protocol

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// maxFrameSize bounds a single protocol line. Puzzle questions and file
// listings are small; anything near this limit is a bug.
const maxFrameSize = 1024 * 1024

// ErrAuthFailed is returned when the handshake's HMAC verification fails on
// either side.
var ErrAuthFailed = errors.New("channel authentication failed")

// Conn frames newline-delimited JSON messages over a stream connection.
// It is not safe for concurrent use; the protocol is strictly sequential.
type Conn struct {
	raw     net.Conn
	scanner *bufio.Scanner
}

// NewConn wraps an accepted or dialed connection.
func NewConn(raw net.Conn) *Conn {
	scanner := bufio.NewScanner(raw)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &Conn{raw: raw, scanner: scanner}
}

// WriteJSON sends one value as a single frame.
func (c *Conn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	data = append(data, '\n')
	if _, err := c.raw.Write(data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadJSON reads the next frame into out.
func (c *Conn) ReadJSON(out any) error {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}
		return fmt.Errorf("failed to read frame: %w", net.ErrClosed)
	}
	if err := json.Unmarshal(c.scanner.Bytes(), out); err != nil {
		return fmt.Errorf("failed to decode frame: %w", err)
	}
	return nil
}

// ReadRaw reads the next frame without decoding it, for dispatch loops that
// decode by type tag.
func (c *Conn) ReadRaw() ([]byte, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}
		return nil, fmt.Errorf("failed to read frame: %w", net.ErrClosed)
	}
	return append([]byte(nil), c.scanner.Bytes()...), nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

type authChallenge struct {
	Challenge string `json:"challenge"`
}

type authReply struct {
	MAC       string `json:"mac"`
	Challenge string `json:"challenge"`
}

type authConfirm struct {
	MAC string `json:"mac"`
}

// ServerHandshake authenticates the peer with a mutual HMAC-SHA256 challenge
// exchange over the shared secret, then clears the deadline. The connection
// must be closed on error; nothing else may be sent over it.
func (c *Conn) ServerHandshake(secret []byte, timeout time.Duration) error {
	defer c.raw.SetDeadline(time.Time{})
	if err := c.raw.SetDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("failed to set handshake deadline: %w", err)
	}

	nonce, err := newNonce()
	if err != nil {
		return err
	}
	if err := c.WriteJSON(authChallenge{Challenge: hex.EncodeToString(nonce)}); err != nil {
		return err
	}

	var reply authReply
	if err := c.ReadJSON(&reply); err != nil {
		return err
	}
	if !verifyMAC(secret, nonce, reply.MAC) {
		return ErrAuthFailed
	}

	peerNonce, err := hex.DecodeString(reply.Challenge)
	if err != nil || len(peerNonce) == 0 {
		return ErrAuthFailed
	}
	return c.WriteJSON(authConfirm{MAC: computeMAC(secret, peerNonce)})
}

// ClientHandshake is the dialing side of ServerHandshake.
func (c *Conn) ClientHandshake(secret []byte, timeout time.Duration) error {
	defer c.raw.SetDeadline(time.Time{})
	if err := c.raw.SetDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("failed to set handshake deadline: %w", err)
	}

	var challenge authChallenge
	if err := c.ReadJSON(&challenge); err != nil {
		return err
	}
	peerNonce, err := hex.DecodeString(challenge.Challenge)
	if err != nil || len(peerNonce) == 0 {
		return ErrAuthFailed
	}

	nonce, err := newNonce()
	if err != nil {
		return err
	}
	reply := authReply{
		MAC:       computeMAC(secret, peerNonce),
		Challenge: hex.EncodeToString(nonce),
	}
	if err := c.WriteJSON(reply); err != nil {
		return err
	}

	var confirm authConfirm
	if err := c.ReadJSON(&confirm); err != nil {
		return err
	}
	if !verifyMAC(secret, nonce, confirm.MAC) {
		return ErrAuthFailed
	}
	return nil
}

func newNonce() ([]byte, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

func computeMAC(secret, nonce []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(nonce)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyMAC(secret, nonce []byte, got string) bool {
	raw, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	want := hmac.New(sha256.New, secret)
	want.Write(nonce)
	return hmac.Equal(raw, want.Sum(nil))
}
