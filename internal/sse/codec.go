// Package sse implements the text/event-stream framing used by the dashboard
// event stream: one "data: <json>" line followed by a blank line.
package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/gosuda/agentboard/internal/domain"
)

var (
	// ErrNotSSE is returned when the input carries no data line.
	ErrNotSSE = errors.New("sse: not an event-stream frame")
	// ErrInvalidJSON is returned when the data line is not valid JSON.
	ErrInvalidJSON = errors.New("sse: invalid json payload")
)

var (
	dataPrefix = []byte("data:")
	terminator = []byte("\n\n")
)

// Encode frames v as a single SSE message.
func Encode(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("sse.Encode: %w", err)
	}

	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, terminator...)
	return frame, nil
}

// Decode parses one SSE frame into v. The frame may end with either one or
// two newlines. v is left untouched on error.
func Decode(raw []byte, v any) error {
	data, err := extractData(raw)
	if err != nil {
		return fmt.Errorf("sse.Decode: %w", err)
	}

	if !json.Valid(data) {
		return fmt.Errorf("sse.Decode: %w", ErrInvalidJSON)
	}

	// Unmarshal fills fields before it reports a type mismatch, so decode
	// into a fresh value and store it only once the whole payload fits.
	dst := reflect.ValueOf(v)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return fmt.Errorf("sse.Decode: %w", &json.InvalidUnmarshalError{Type: reflect.TypeOf(v)})
	}
	fresh := reflect.New(dst.Elem().Type())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		return fmt.Errorf("sse.Decode: %w: %w", ErrInvalidJSON, err)
	}
	dst.Elem().Set(fresh.Elem())
	return nil
}

// DecodeMessage parses one SSE frame carrying a stream envelope.
func DecodeMessage(raw []byte) (domain.Message, error) {
	var msg domain.Message
	if err := Decode(raw, &msg); err != nil {
		return domain.Message{}, err
	}
	if msg.Type == "" {
		return domain.Message{}, fmt.Errorf("sse.DecodeMessage: missing type: %w", ErrInvalidJSON)
	}
	return msg, nil
}

// extractData joins the values of every data line of a frame.
func extractData(raw []byte) ([]byte, error) {
	raw = bytes.TrimSuffix(raw, []byte("\n"))
	raw = bytes.TrimSuffix(raw, []byte("\n"))

	var (
		out   []byte
		found bool
	)
	for _, line := range bytes.Split(raw, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		value := bytes.TrimPrefix(line[len(dataPrefix):], []byte(" "))
		if found {
			out = append(out, '\n')
		}
		out = append(out, value...)
		found = true
	}

	if !found {
		return nil, ErrNotSSE
	}
	return out, nil
}
