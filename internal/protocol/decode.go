package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
)

// Decode - validates one inbound frame and returns the typed request.
// Every failure wraps apperror.ErrProtocol.
func Decode(payload []byte) (Request, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var contents map[string]interface{}
	if err := decoder.Decode(&contents); err != nil {
		return nil, fmt.Errorf("%w: malformed json: %v", apperror.ErrProtocol, err)
	}

	if decoder.More() {
		return nil, fmt.Errorf("%w: trailing data after message", apperror.ErrProtocol)
	}

	msgType, ok := contents["type"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing message type", apperror.ErrProtocol)
	}

	switch msgType {
	case TypeMove:
		var move Move
		if err := decodeContents(contents, &move, "row", "col"); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperror.ErrProtocol, msgType, err)
		}
		return move, nil
	case TypeRematch:
		return Rematch{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", apperror.ErrProtocol, msgType)
	}
}

// decodeContents - strict decoding: required keys must be present and non-null,
// numbers must be integers, no string-to-number coercion.
func decodeContents(contents map[string]interface{}, result interface{}, required ...string) error {
	for _, key := range required {
		if value, ok := contents[key]; !ok || value == nil {
			return fmt.Errorf("missing field %q", key)
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnset: true,
		Result:     result,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	return decoder.Decode(contents)
}
