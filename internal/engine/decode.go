package engine

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/rfp-evaluator/internal/apierr"
	"github.com/spigell/rfp-evaluator/internal/scoring"
)

// DecodePayload decodes a loosely typed payload into out. Strings holding
// numbers or booleans are accepted, as upstream extractors often emit them.
func DecodePayload(payload map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return apierr.New(apierr.CodeSchemaValidationFailed, apierr.StageValidate, false, "decode payload: %v", err)
	}
	return nil
}

// ReadPayload reads one JSON object.
func ReadPayload(r io.Reader) (map[string]any, error) {
	var payload map[string]any
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, apierr.Validation("payload is not a json object: %v", err)
	}
	if payload == nil {
		return nil, apierr.Validation("payload is empty")
	}
	return payload, nil
}

// DecodeMatchRequest decodes the input of MatchScope.
func DecodeMatchRequest(payload map[string]any) (MatchRequest, error) {
	var req MatchRequest
	err := DecodePayload(payload, &req)
	return req, err
}

// DecodeScoreRequest decodes the input of CalculateScore.
func DecodeScoreRequest(payload map[string]any) (scoring.Input, error) {
	var in scoring.Input
	err := DecodePayload(payload, &in)
	return in, err
}
