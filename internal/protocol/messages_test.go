package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseServerEventItemCreated(t *testing.T) {
	raw := []byte(`{"type":"conversation.item.created","item":{"id":"item_1","type":"message","role":"user","content":[{"type":"input_audio","transcript":"hi there"}]}}`)
	ev, err := ParseServerEvent(raw)
	if err != nil {
		t.Fatalf("ParseServerEvent() error = %v", err)
	}

	created, ok := ev.(ItemCreated)
	if !ok {
		t.Fatalf("event type = %T, want ItemCreated", ev)
	}
	if created.Item.ID != "item_1" || created.Item.Role != "user" {
		t.Fatalf("unexpected item: %+v", created.Item)
	}
	if got := created.Item.FirstText(); got != "hi there" {
		t.Fatalf("FirstText() = %q, want %q", got, "hi there")
	}
}

func TestParseServerEventTranscriptVariants(t *testing.T) {
	ev, err := ParseServerEvent([]byte(`{"type":"conversation.item.input_audio_transcription.delta","item_id":"u1","delta":"Hel"}`))
	if err != nil {
		t.Fatalf("ParseServerEvent() error = %v", err)
	}
	if d, ok := ev.(InputTranscriptionDelta); !ok || d.ItemID != "u1" || d.Delta != "Hel" {
		t.Fatalf("event = %#v, want InputTranscriptionDelta{u1, Hel}", ev)
	}

	ev, err = ParseServerEvent([]byte(`{"type":"conversation.item.input_audio_transcription.completed","item_id":"u1","transcript":"Hello"}`))
	if err != nil {
		t.Fatalf("ParseServerEvent() error = %v", err)
	}
	if c, ok := ev.(InputTranscriptionCompleted); !ok || c.Transcript != "Hello" {
		t.Fatalf("event = %#v, want InputTranscriptionCompleted{Hello}", ev)
	}

	ev, err = ParseServerEvent([]byte(`{"type":"response.audio_transcript.delta","item_id":"a1","response_id":"r1","delta":"Sure"}`))
	if err != nil {
		t.Fatalf("ParseServerEvent() error = %v", err)
	}
	if d, ok := ev.(AssistantTranscriptDelta); !ok || d.ItemID != "a1" || d.Delta != "Sure" {
		t.Fatalf("event = %#v, want AssistantTranscriptDelta{a1, Sure}", ev)
	}
}

func TestParseServerEventResponseDoneFunctionCalls(t *testing.T) {
	raw := []byte(`{"type":"response.done","response":{"id":"r1","status":"completed","output":[
		{"type":"message","role":"assistant"},
		{"type":"function_call","name":"lookupInventory","arguments":"{\"brand\":\"any\"}","call_id":"c1"},
		{"type":"function_call","name":"","arguments":"{}","call_id":"c2"}
	]}}`)
	ev, err := ParseServerEvent(raw)
	if err != nil {
		t.Fatalf("ParseServerEvent() error = %v", err)
	}
	done, ok := ev.(ResponseDone)
	if !ok {
		t.Fatalf("event type = %T, want ResponseDone", ev)
	}
	calls := done.FunctionCalls()
	if len(calls) != 1 {
		t.Fatalf("len(FunctionCalls()) = %d, want 1", len(calls))
	}
	if calls[0].CallID != "c1" || calls[0].Name != "lookupInventory" {
		t.Fatalf("unexpected call: %+v", calls[0])
	}
}

func TestParseServerEventUnknownTypeIsUnrecognized(t *testing.T) {
	ev, err := ParseServerEvent([]byte(`{"type":"rate_limits.updated","rate_limits":[]}`))
	if err != nil {
		t.Fatalf("ParseServerEvent() error = %v", err)
	}
	u, ok := ev.(Unrecognized)
	if !ok {
		t.Fatalf("event type = %T, want Unrecognized", ev)
	}
	if u.EventType() != "rate_limits.updated" {
		t.Fatalf("EventType() = %q, want %q", u.EventType(), "rate_limits.updated")
	}
}

func TestParseServerEventRejectsMalformedJSON(t *testing.T) {
	_, err := ParseServerEvent([]byte(`{"type":`))
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("error = %v, want ErrInvalidEvent", err)
	}
	_, err = ParseServerEvent([]byte(`{"type":"response.done","response":"nope"}`))
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("error = %v, want ErrInvalidEvent", err)
	}
}

func TestSessionUpdateEncodesNullTurnDetection(t *testing.T) {
	msg := NewSessionUpdate(SessionSettings{
		Modalities:        []string{"text", "audio"},
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
	})
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, `"turn_detection":null`) {
		t.Fatalf("body = %s, want turn_detection null", body)
	}
	if !strings.Contains(body, `"tools":[]`) {
		t.Fatalf("body = %s, want empty tools array", body)
	}
	if msg.MessageType() != TypeSessionUpdate {
		t.Fatalf("MessageType() = %q, want %q", msg.MessageType(), TypeSessionUpdate)
	}
}

func TestFunctionCallOutputShape(t *testing.T) {
	raw, err := json.Marshal(NewFunctionCallOutput("c1", `{"success":true}`))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded struct {
		Type string `json:"type"`
		Item struct {
			Type   string `json:"type"`
			CallID string `json:"call_id"`
			Output string `json:"output"`
			Role   string `json:"role"`
		} `json:"item"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Type != "conversation.item.create" || decoded.Item.Type != "function_call_output" {
		t.Fatalf("unexpected envelope: %s", raw)
	}
	if decoded.Item.CallID != "c1" || decoded.Item.Output != `{"success":true}` || decoded.Item.Role != "" {
		t.Fatalf("unexpected item: %+v", decoded.Item)
	}
}

func TestAudioAppendRoundTripsPCM(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	msg := NewAudioAppend(pcm)
	got, err := AudioDelta{Delta: msg.Audio}.PCM()
	if err != nil {
		t.Fatalf("PCM() error = %v", err)
	}
	if string(got) != string(pcm) {
		t.Fatalf("PCM() = %v, want %v", got, pcm)
	}
}

func BenchmarkParseServerEventTranscriptDelta(b *testing.B) {
	raw := []byte(`{"type":"response.audio_transcript.delta","event_id":"e1","response_id":"r1","item_id":"a1","output_index":0,"content_index":0,"delta":"Sure, "}`)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ev, err := ParseServerEvent(raw)
		if err != nil {
			b.Fatalf("ParseServerEvent() error = %v", err)
		}
		if _, ok := ev.(AssistantTranscriptDelta); !ok {
			b.Fatalf("event type = %T, want AssistantTranscriptDelta", ev)
		}
	}
}
