package nativemsg

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Transport is the metrics label for messages arriving over stdio
const Transport = "native"

// tooLargeResponse replaces a reply over MaxOutgoing so the browser still
// gets an answer. It matches the router's status response shape.
var tooLargeResponse = map[string]string{"status": "error", "error": "response too large"}

// Handler answers one decoded message
type Handler interface {
	HandleJSON(ctx context.Context, transport string, raw []byte) interface{}
}

// Host serves native-messaging requests from the browser. Messages are
// answered one at a time in arrival order.
type Host struct {
	handler Handler
	in      io.Reader
	out     io.Writer
	logger  zerolog.Logger
}

// NewHost creates a host reading frames from in and writing to out
func NewHost(handler Handler, in io.Reader, out io.Writer, logger zerolog.Logger) *Host {
	return &Host{
		handler: handler,
		in:      in,
		out:     out,
		logger:  logger.With().Str("component", "native-host").Logger(),
	}
}

// Serve runs until the browser closes the stream or ctx is cancelled.
// A cleanly closed stream returns nil.
func (h *Host) Serve(ctx context.Context) error {
	h.logger.Info().Msg("Native messaging host started")

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			payload, err := ReadMessage(h.in)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Msg("Native messaging host stopped")
			return nil

		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				h.logger.Info().Msg("Browser closed the native messaging channel")
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)

		case payload := <-frames:
			resp := h.handler.HandleJSON(ctx, Transport, payload)
			if err := WriteMessage(h.out, resp); err != nil {
				if errors.Is(err, ErrTooLarge) {
					h.logger.Warn().Err(err).Msg("Response too large, replying with an error")
					if err := WriteMessage(h.out, tooLargeResponse); err != nil {
						return fmt.Errorf("failed to write response: %w", err)
					}
					continue
				}
				return fmt.Errorf("failed to write response: %w", err)
			}
		}
	}
}
