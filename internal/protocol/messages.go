package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies realtime control-channel payload variants.
type MessageType string

const (
	TypeSessionUpdate          MessageType = "session.update"
	TypeConversationItemCreate MessageType = "conversation.item.create"
	TypeResponseCreate         MessageType = "response.create"
	TypeInputAudioBufferAppend MessageType = "input_audio_buffer.append"

	TypeItemCreated                 MessageType = "conversation.item.created"
	TypeInputTranscriptionDelta     MessageType = "conversation.item.input_audio_transcription.delta"
	TypeInputTranscriptionCompleted MessageType = "conversation.item.input_audio_transcription.completed"
	TypeAssistantTranscriptDelta    MessageType = "response.audio_transcript.delta"
	TypeResponseDone                MessageType = "response.done"
	TypeAudioDelta                  MessageType = "response.audio.delta"
	TypeError                       MessageType = "error"
)

var ErrInvalidEvent = errors.New("invalid realtime event")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ServerEvent is the closed set of inbound events the session understands.
// Anything else decodes to Unrecognized.
type ServerEvent interface {
	EventType() MessageType
}

// ContentPart is one element of a conversation item's content array.
type ContentPart struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

type Item struct {
	ID        string        `json:"id,omitempty"`
	Type      string        `json:"type"`
	Role      string        `json:"role,omitempty"`
	Content   []ContentPart `json:"content,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Name      string        `json:"name,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	Output    string        `json:"output,omitempty"`
}

// FirstText returns the text or transcript of the first content part.
func (it Item) FirstText() string {
	if len(it.Content) == 0 {
		return ""
	}
	if it.Content[0].Text != "" {
		return it.Content[0].Text
	}
	return it.Content[0].Transcript
}

type ItemCreated struct {
	Item Item `json:"item"`
}

type InputTranscriptionDelta struct {
	ItemID string `json:"item_id"`
	Delta  string `json:"delta"`
}

type InputTranscriptionCompleted struct {
	ItemID     string `json:"item_id"`
	Transcript string `json:"transcript"`
}

type AssistantTranscriptDelta struct {
	ItemID     string `json:"item_id"`
	ResponseID string `json:"response_id"`
	Delta      string `json:"delta"`
}

type ResponseDone struct {
	Response struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Output []Item `json:"output"`
	} `json:"response"`
}

// FunctionCalls returns the function_call outputs that carry both a name
// and arguments.
func (r ResponseDone) FunctionCalls() []Item {
	var calls []Item
	for _, out := range r.Response.Output {
		if out.Type != "function_call" || out.Name == "" || out.Arguments == "" {
			continue
		}
		calls = append(calls, out)
	}
	return calls
}

type AudioDelta struct {
	ItemID string `json:"item_id"`
	Delta  string `json:"delta"`
}

// PCM decodes the base64 PCM16 payload.
func (a AudioDelta) PCM() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Delta)
}

type ServerError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Unrecognized struct {
	Type MessageType
	Raw  json.RawMessage
}

func (ItemCreated) EventType() MessageType                 { return TypeItemCreated }
func (InputTranscriptionDelta) EventType() MessageType     { return TypeInputTranscriptionDelta }
func (InputTranscriptionCompleted) EventType() MessageType { return TypeInputTranscriptionCompleted }
func (AssistantTranscriptDelta) EventType() MessageType    { return TypeAssistantTranscriptDelta }
func (ResponseDone) EventType() MessageType                { return TypeResponseDone }
func (AudioDelta) EventType() MessageType                  { return TypeAudioDelta }
func (ServerError) EventType() MessageType                 { return TypeError }
func (u Unrecognized) EventType() MessageType              { return u.Type }

// ParseServerEvent decodes one inbound control-channel message. Unknown
// event types are not an error; they come back as Unrecognized.
func ParseServerEvent(raw []byte) (ServerEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	switch env.Type {
	case TypeItemCreated:
		return decode[ItemCreated](raw)
	case TypeInputTranscriptionDelta:
		return decode[InputTranscriptionDelta](raw)
	case TypeInputTranscriptionCompleted:
		return decode[InputTranscriptionCompleted](raw)
	case TypeAssistantTranscriptDelta:
		return decode[AssistantTranscriptDelta](raw)
	case TypeResponseDone:
		return decode[ResponseDone](raw)
	case TypeAudioDelta:
		return decode[AudioDelta](raw)
	case TypeError:
		return decode[ServerError](raw)
	default:
		return Unrecognized{Type: env.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}

func decode[T ServerEvent](raw []byte) (ServerEvent, error) {
	var msg T
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEvent, msg.EventType(), err)
	}
	return msg, nil
}

// OutboundMessage is anything the client sends on the control channel.
type OutboundMessage interface {
	MessageType() MessageType
}

type Tool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type InputAudioTranscription struct {
	Model string `json:"model"`
}

type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
	CreateResponse    bool    `json:"create_response"`
}

// SessionSettings is always sent in full. A nil TurnDetection encodes as
// null, which puts the remote agent in manual turn-taking.
type SessionSettings struct {
	Modalities              []string                 `json:"modalities"`
	Instructions            string                   `json:"instructions,omitempty"`
	Voice                   string                   `json:"voice,omitempty"`
	InputAudioFormat        string                   `json:"input_audio_format"`
	OutputAudioFormat       string                   `json:"output_audio_format"`
	InputAudioTranscription *InputAudioTranscription `json:"input_audio_transcription"`
	TurnDetection           *TurnDetection           `json:"turn_detection"`
	Tools                   []Tool                   `json:"tools"`
	ToolChoice              string                   `json:"tool_choice,omitempty"`
}

type SessionUpdate struct {
	Type    MessageType     `json:"type"`
	Session SessionSettings `json:"session"`
}

type ConversationItemCreate struct {
	Type MessageType `json:"type"`
	Item Item        `json:"item"`
}

type ResponseCreate struct {
	Type MessageType `json:"type"`
}

type InputAudioBufferAppend struct {
	Type  MessageType `json:"type"`
	Audio string      `json:"audio"`
}

func (SessionUpdate) MessageType() MessageType          { return TypeSessionUpdate }
func (ConversationItemCreate) MessageType() MessageType { return TypeConversationItemCreate }
func (ResponseCreate) MessageType() MessageType         { return TypeResponseCreate }
func (InputAudioBufferAppend) MessageType() MessageType { return TypeInputAudioBufferAppend }

func NewSessionUpdate(settings SessionSettings) SessionUpdate {
	if settings.Tools == nil {
		settings.Tools = []Tool{}
	}
	return SessionUpdate{Type: TypeSessionUpdate, Session: settings}
}

func NewResponseCreate() ResponseCreate {
	return ResponseCreate{Type: TypeResponseCreate}
}

// NewUserText builds a typed user message item.
func NewUserText(id, text string) ConversationItemCreate {
	return ConversationItemCreate{
		Type: TypeConversationItemCreate,
		Item: Item{
			ID:      id,
			Type:    "message",
			Role:    "user",
			Content: []ContentPart{{Type: "input_text", Text: text}},
		},
	}
}

// NewFunctionCallOutput reports a tool result; output is a JSON document
// serialized as a string.
func NewFunctionCallOutput(callID, output string) ConversationItemCreate {
	return ConversationItemCreate{
		Type: TypeConversationItemCreate,
		Item: Item{
			Type:   "function_call_output",
			CallID: callID,
			Output: output,
		},
	}
}

func NewAudioAppend(pcm16 []byte) InputAudioBufferAppend {
	return InputAudioBufferAppend{
		Type:  TypeInputAudioBufferAppend,
		Audio: base64.StdEncoding.EncodeToString(pcm16),
	}
}
