package suggest

import (
	"errors"
	"testing"
)

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{
			name: "candidates",
			body: `{"candidates":[{"content":{"parts":[{"text":"Take "},{"text":"a break."}]}}]}`,
			want: "Take a break.",
		},
		{
			name: "choices",
			body: `{"choices":[{"message":{"content":" Close the tab. "}}]}`,
			want: "Close the tab.",
		},
		{
			name: "output text",
			body: `{"output_text":"Study first."}`,
			want: "Study first.",
		},
		{name: "no candidates", body: `{"candidates":[]}`, wantErr: ErrEmptyResponse},
		{name: "blank text", body: `{"output_text":"   "}`, wantErr: ErrEmptyResponse},
		{name: "unknown shape", body: `{"result":"hi"}`, wantErr: ErrUnrecognizedSchema},
		{name: "wrong variant type", body: `{"choices":"hi"}`, wantErr: ErrUnrecognizedSchema},
		{name: "not json", body: `<html>`, wantErr: ErrUnrecognizedSchema},
		{name: "array body", body: `[1,2]`, wantErr: ErrUnrecognizedSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeResponse([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v (text %q)", tt.wantErr, err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeResponse: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
