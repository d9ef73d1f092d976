package nativemsg

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func frame(payload string) []byte {
	buf := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	return buf
}

func TestReadMessage(t *testing.T) {
	in := bytes.NewReader(append(frame(`{"a":1}`), frame(`{}`)...))

	first, err := ReadMessage(in)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(first) != `{"a":1}` {
		t.Errorf("unexpected first message %q", first)
	}

	second, err := ReadMessage(in)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(second) != `{}` {
		t.Errorf("unexpected second message %q", second)
	}

	if _, err := ReadMessage(in); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestReadMessageErrors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"truncated header", []byte{1, 0}},
		{"truncated payload", frame(`{"long":true}`)[:8]},
		{"too large", []byte{0xff, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMessage(bytes.NewReader(tt.input))
			if err == nil || errors.Is(err, io.EOF) {
				t.Fatalf("expected a framing error, got %v", err)
			}
		})
	}
}

func TestWriteMessage(t *testing.T) {
	var out bytes.Buffer
	if err := WriteMessage(&out, map[string]string{"status": "ok"}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	want := frame(`{"status":"ok"}`)
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("WriteMessage wrote %v, want %v", out.Bytes(), want)
	}

	if err := WriteMessage(&out, strings.Repeat("x", MaxOutgoing)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

type echoHandler struct {
	transports []string
}

func (h *echoHandler) HandleJSON(ctx context.Context, transport string, raw []byte) interface{} {
	h.transports = append(h.transports, transport)
	return map[string]string{"echo": string(raw)}
}

func TestHostServe(t *testing.T) {
	in := bytes.NewReader(append(frame(`{"n":1}`), frame(`{"n":2}`)...))
	var out bytes.Buffer
	handler := &echoHandler{}

	host := NewHost(handler, in, &out, zerolog.Nop())
	if err := host.Serve(context.Background()); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var got []string
	for {
		payload, err := ReadMessage(&out)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		got = append(got, string(payload))
	}

	want := []string{`{"echo":"{\"n\":1}"}`, `{"echo":"{\"n\":2}"}`}
	if len(got) != len(want) {
		t.Fatalf("got %d responses, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("response %d = %s, want %s", i, got[i], want[i])
		}
	}
	if len(handler.transports) != 2 || handler.transports[0] != Transport {
		t.Errorf("unexpected transports %v", handler.transports)
	}
}

func TestHostServeFramingError(t *testing.T) {
	host := NewHost(&echoHandler{}, bytes.NewReader([]byte{9, 0, 0, 0, '{'}), io.Discard, zerolog.Nop())
	if err := host.Serve(context.Background()); err == nil {
		t.Fatal("expected error for truncated frame")
	}
}

type largeHandler struct{}

func (largeHandler) HandleJSON(ctx context.Context, transport string, raw []byte) interface{} {
	if string(raw) == `"big"` {
		return map[string]string{"data": strings.Repeat("x", MaxOutgoing)}
	}
	return map[string]string{"data": "small"}
}

func TestHostRepliesWhenResponseTooLarge(t *testing.T) {
	in := bytes.NewReader(append(frame(`"big"`), frame(`"small"`)...))
	var out bytes.Buffer

	host := NewHost(largeHandler{}, in, &out, zerolog.Nop())
	if err := host.Serve(context.Background()); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	first, err := ReadMessage(&out)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(first) != `{"error":"response too large","status":"error"}` {
		t.Errorf("unexpected reply to oversized response: %s", first)
	}

	second, err := ReadMessage(&out)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(second) != `{"data":"small"}` {
		t.Errorf("unexpected second reply: %s", second)
	}
}
