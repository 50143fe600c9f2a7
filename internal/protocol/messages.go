package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants on the transcription
// stream.
type MessageType string

const (
	TypeTranscribeRequest MessageType = "transcribe_request"
	TypeStateUpdate       MessageType = "state_update"
	TypeTranscriptResult  MessageType = "transcript_result"
	TypeErrorEvent        MessageType = "error"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// TranscribeRequest is the single client message: an audio payload to
// transcribe, base64-encoded, with its container format.
type TranscribeRequest struct {
	Type        MessageType `json:"type"`
	Format      string      `json:"format"`
	AudioBase64 string      `json:"audio_base64"`
}

// StateUpdate is emitted on every controller transition so the client can
// render progress, including retry countdowns.
type StateUpdate struct {
	Type      MessageType `json:"type"`
	State     string      `json:"state"`
	Attempt   int         `json:"attempt"`
	RetryInMS int64       `json:"retry_in_ms,omitempty"`
}

type TranscriptResult struct {
	Type     MessageType `json:"type"`
	Text     string      `json:"text"`
	Attempts int         `json:"attempts"`
}

type ErrorEvent struct {
	Type     MessageType `json:"type"`
	Code     string      `json:"code"`
	Message  string      `json:"message"`
	Attempts int         `json:"attempts,omitempty"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeTranscribeRequest:
		var msg TranscribeRequest
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Format == "" || msg.AudioBase64 == "" {
			return nil, errors.New("invalid transcribe_request")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
