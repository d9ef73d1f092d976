package suggest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// schema identifies which known response shape a body was decoded as
type schema int

const (
	schemaUnknown schema = iota
	schemaCandidates
	schemaChoices
	schemaOutputText
)

func (s schema) String() string {
	switch s {
	case schemaCandidates:
		return "candidates"
	case schemaChoices:
		return "choices"
	case schemaOutputText:
		return "output_text"
	default:
		return "unknown"
	}
}

// response is a tagged union of the generation response schemas the client
// understands. Exactly one variant is populated after decode.
type response struct {
	kind schema

	candidates []candidate
	choices    []choice
	outputText string
}

type candidate struct {
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
}

type choice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// UnmarshalJSON selects the variant by which discriminating field is present.
func (r *response) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrUnrecognizedSchema, err)
	}

	switch {
	case fields["candidates"] != nil:
		r.kind = schemaCandidates
		return decodeVariant(fields["candidates"], &r.candidates)
	case fields["choices"] != nil:
		r.kind = schemaChoices
		return decodeVariant(fields["choices"], &r.choices)
	case fields["output_text"] != nil:
		r.kind = schemaOutputText
		return decodeVariant(fields["output_text"], &r.outputText)
	default:
		r.kind = schemaUnknown
		return ErrUnrecognizedSchema
	}
}

func decodeVariant(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnrecognizedSchema, err)
	}
	return nil
}

// Text returns the generated text of the decoded variant.
func (r *response) Text() (string, error) {
	var parts []string

	switch r.kind {
	case schemaCandidates:
		if len(r.candidates) > 0 {
			for _, part := range r.candidates[0].Content.Parts {
				parts = append(parts, part.Text)
			}
		}
	case schemaChoices:
		if len(r.choices) > 0 {
			parts = append(parts, r.choices[0].Message.Content)
		}
	case schemaOutputText:
		parts = append(parts, r.outputText)
	default:
		return "", ErrUnrecognizedSchema
	}

	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// decodeResponse extracts the generated text from a response body.
func decodeResponse(body []byte) (string, error) {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		if errors.Is(err, ErrUnrecognizedSchema) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUnrecognizedSchema, err)
	}
	return r.Text()
}
