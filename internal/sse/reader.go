package sse

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"time"
)

// maxFrameBytes allows a full batch of hook events in one frame.
const maxFrameBytes = 8 << 20

// Reader splits an event stream into frames.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	return &Reader{scanner: scanner}
}

// Next returns the next frame that carries data, terminated by "\n\n".
// Comment-only frames such as heartbeats are skipped. It returns io.EOF when
// the stream ends cleanly.
func (r *Reader) Next() ([]byte, error) {
	var (
		frame   bytes.Buffer
		hasData bool
	)

	for {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, err
			}
			if hasData {
				frame.WriteString("\n")
				return frame.Bytes(), nil
			}
			return nil, io.EOF
		}

		line := bytes.TrimSuffix(r.scanner.Bytes(), []byte("\r"))
		if len(line) == 0 {
			if !hasData {
				frame.Reset()
				continue
			}
			frame.WriteString("\n")
			return frame.Bytes(), nil
		}

		// Comments (": ping") never carry data.
		if line[0] == ':' {
			continue
		}
		if bytes.HasPrefix(line, dataPrefix) {
			hasData = true
		}
		frame.Write(line)
		frame.WriteByte('\n')
	}
}

// Writer writes frames to a streaming HTTP response.
type Writer struct {
	w  io.Writer
	rc *http.ResponseController
}

// NewWriter prepares w for streaming: event-stream headers, no buffering and
// no write deadline.
func NewWriter(w http.ResponseWriter) *Writer {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	// Long-lived streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	return &Writer{w: w, rc: rc}
}

// WriteFrame writes an already encoded frame and flushes it.
func (w *Writer) WriteFrame(frame []byte) error {
	if _, err := w.w.Write(frame); err != nil {
		return err
	}
	return w.rc.Flush()
}

// WriteEvent encodes v and flushes it.
func (w *Writer) WriteEvent(v any) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}
	return w.WriteFrame(frame)
}

// Comment writes a comment line, used as a keep-alive.
func (w *Writer) Comment(text string) error {
	if _, err := io.WriteString(w.w, ": "+text+"\n\n"); err != nil {
		return err
	}
	return w.rc.Flush()
}
