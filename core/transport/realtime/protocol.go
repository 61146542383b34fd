package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/koscakluka/bridge-core/core/events"
)

// serverEvent is the decoded superset of every inbound message shape; the
// protocol multiplexes all of them over a single "type" discriminator.
type serverEvent struct {
	Type string `json:"type"`

	Session *struct {
		ID string `json:"id"`
	} `json:"session,omitempty"`

	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`

	Response *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"response,omitempty"`

	Item *struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Name   string `json:"name"`
		CallID string `json:"call_id"`
	} `json:"item,omitempty"`

	Transcript string `json:"transcript,omitempty"`
	Delta      string `json:"delta,omitempty"`
	CallID     string `json:"call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
}

// decodeServerEvent maps one wire message onto the session event contract.
// Unknown message types return (nil, nil): the protocol is allowed to grow
// without breaking older clients.
func decodeServerEvent(raw []byte) (events.Event, error) {
	var message serverEvent
	if err := json.Unmarshal(raw, &message); err != nil {
		return nil, fmt.Errorf("invalid server event: %w", err)
	}

	switch message.Type {
	case "session.created", "session.updated":
		sessionID := ""
		if message.Session != nil {
			sessionID = message.Session.ID
		}
		if message.Type == "session.updated" {
			return nil, nil
		}
		return events.NewSessionReady(sessionID), nil

	case "error":
		errorMessage := "unknown error"
		if message.Error != nil && message.Error.Message != "" {
			errorMessage = message.Error.Message
		}
		return events.NewProtocolError(errorMessage, false), nil

	case "response.created":
		responseID := ""
		if message.Response != nil {
			responseID = message.Response.ID
		}
		return events.NewTurnStarted(responseID), nil

	case "response.done":
		responseID := ""
		cancelled := false
		if message.Response != nil {
			responseID = message.Response.ID
			cancelled = message.Response.Status == "cancelled"
		}
		return events.NewTurnFinalized(responseID, cancelled), nil

	case "input_audio_buffer.speech_started":
		return events.NewSpeechStarted(), nil

	case "input_audio_buffer.speech_stopped":
		return events.NewSpeechStopped(), nil

	case "conversation.item.input_audio_transcription.completed":
		return events.NewTranscriptCompleted(events.TranscriptRoleUser, message.Transcript), nil

	case "response.audio_transcript.done":
		return events.NewTranscriptCompleted(events.TranscriptRoleAssistant, message.Transcript), nil

	case "response.audio.delta":
		audio, err := base64.StdEncoding.DecodeString(message.Delta)
		if err != nil {
			return nil, fmt.Errorf("invalid audio delta: %w", err)
		}
		return events.NewAudioFrame(audio), nil

	case "response.output_item.added":
		if message.Item == nil || message.Item.Type != "function_call" {
			return nil, nil
		}
		return events.NewToolCallRequested(message.Item.Name, message.Item.CallID, message.Item.ID), nil

	case "response.function_call_arguments.done":
		return events.NewToolCallArgumentsReady(message.CallID, message.Name, message.Arguments), nil
	}

	return nil, nil
}

type clientMessage struct {
	Type           string          `json:"type"`
	Audio          string          `json:"audio,omitempty"`
	PreviousItemID string          `json:"previous_item_id,omitempty"`
	Item           *clientItem     `json:"item,omitempty"`
	Session        *SessionConfig  `json:"session,omitempty"`
	Response       json.RawMessage `json:"response,omitempty"`
}

type clientItem struct {
	Type    string          `json:"type"`
	Role    string          `json:"role,omitempty"`
	Content []clientContent `json:"content,omitempty"`
	CallID  string          `json:"call_id,omitempty"`
	Output  string          `json:"output,omitempty"`
}

type clientContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// contentType picks the content discriminator the protocol expects per role:
// assistant text uses "text", everything inbound uses "input_text".
func contentType(role string) string {
	if role == "assistant" {
		return "text"
	}
	return "input_text"
}
