package sandbox

import (
	"bytes"
	"io"
	"sync"
)

// LogBuffer accumulates output from a streaming goroutine and hands it out on
// demand. Safe for concurrent use.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// demuxStreams splits a multiplexed Docker attach stream into stdout and
// stderr writers, returning when the stream ends.
// Docker frames use a header format: [8 bytes header][payload]
// Header format: [STREAM_TYPE (1 byte)][RESERVED (3 bytes)][SIZE (4 bytes)]
func demuxStreams(reader io.Reader, stdout, stderr io.Writer) {
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(reader, header); err != nil {
			return
		}

		// Extract stream type (first byte)
		streamType := header[0]
		// Extract size (last 4 bytes, big-endian)
		size := int(header[4])<<24 | int(header[5])<<16 | int(header[6])<<8 | int(header[7])
		if size <= 0 || size > 10*1024*1024 { // 10MB max per frame
			continue
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(reader, payload); err != nil {
			return
		}

		switch streamType {
		case 1:
			_, _ = stdout.Write(payload)
		case 2:
			_, _ = stderr.Write(payload)
		}
	}
}
