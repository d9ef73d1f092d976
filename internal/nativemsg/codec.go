// Package nativemsg implements the browser native-messaging wire format:
// each message is a JSON document preceded by its length as a 32-bit
// unsigned integer in native (little-endian) byte order.
package nativemsg

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// MaxIncoming bounds messages read from the browser
	MaxIncoming = 64 << 20

	// MaxOutgoing is the browser's limit for messages sent to it
	MaxOutgoing = 1 << 20
)

// ErrTooLarge is returned for a frame over the size limit.
var ErrTooLarge = errors.New("nativemsg: message too large")

// ReadMessage reads one framed message. It returns io.EOF when the stream
// ends cleanly between frames.
func ReadMessage(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("nativemsg: truncated header: %w", err)
		}
		return nil, err
	}

	size := binary.LittleEndian.Uint32(header[:])
	if size > MaxIncoming {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("nativemsg: truncated payload: %w", err)
	}
	return payload, nil
}

// WriteMessage encodes v as JSON and writes it as one frame.
func WriteMessage(w io.Writer, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("nativemsg: encode: %w", err)
	}
	if len(payload) > MaxOutgoing {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}

	frame := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)

	_, err = w.Write(frame)
	return err
}
