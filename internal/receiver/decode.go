package receiver

import (
	"encoding/json"
	"fmt"
	"strings"

	telemetry "gasmon/internal/telemetry/domain"
)

// snsEnvelope is the notification wrapper the topic puts around the sensor
// payload.
type snsEnvelope struct {
	Message string `json:"Message"`
}

// eventPayload is the sensor reading as published upstream.
type eventPayload struct {
	LocationID string  `json:"locationId"`
	EventID    string  `json:"eventId"`
	Value      float64 `json:"value"`
	Timestamp  int64   `json:"timestamp"`
}

// decodeMessage unwraps one raw queue message body into an event. Some
// producers double-encode the payload, so surrounding quotes and escape
// backslashes are stripped before the inner decode.
func decodeMessage(body string) (telemetry.Event, error) {
	var envelope snsEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return telemetry.Event{}, fmt.Errorf("receiver: decode envelope: %w", err)
	}

	payloadJSON := strings.Trim(envelope.Message, `"`)
	payloadJSON = strings.ReplaceAll(payloadJSON, `\`, "")

	var payload eventPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return telemetry.Event{}, fmt.Errorf("receiver: decode payload: %w", err)
	}

	return telemetry.Event{
		LocationID: payload.LocationID,
		EventID:    payload.EventID,
		Value:      payload.Value,
		Timestamp:  payload.Timestamp,
	}, nil
}
