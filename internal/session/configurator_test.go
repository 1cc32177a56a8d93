package session

import (
	"testing"
	"time"

	"github.com/ent0n29/concierge/internal/protocol"
	"github.com/ent0n29/concierge/internal/realtime"
	"github.com/ent0n29/concierge/internal/tools"
)

func newTestConfigurator(t *testing.T, conn Channel) *Configurator {
	t.Helper()
	agent := tools.InventoryAgent("http://localhost:3000", time.Second)
	reg, err := agent.Registry()
	if err != nil {
		t.Fatalf("Registry() error = %v", err)
	}
	return NewConfigurator(conn, agent, reg, "")
}

func TestApplyServerVAD(t *testing.T) {
	conn := newFakeConn(realtime.StateOpen)
	if !newTestConfigurator(t, conn).Apply(ModeServerVAD) {
		t.Fatalf("Apply() = false, want true")
	}

	sent := conn.messages()
	if len(sent) != 1 || sent[0].MessageType() != protocol.TypeSessionUpdate {
		t.Fatalf("sent = %+v, want one session.update", sent)
	}
	if !conn.capture() {
		t.Fatalf("capture disabled, want enabled in server VAD")
	}

	session := sessionJSON(sent[0])
	td, ok := session["turn_detection"].(map[string]any)
	if !ok {
		t.Fatalf("turn_detection = %v, want object", session["turn_detection"])
	}
	if td["type"] != "server_vad" || td["threshold"] != 0.5 {
		t.Fatalf("turn_detection = %v, want server_vad at 0.5", td)
	}
	if td["prefix_padding_ms"] != float64(300) || td["silence_duration_ms"] != float64(300) {
		t.Fatalf("turn_detection = %v, want 300ms padding and silence", td)
	}
	if td["create_response"] != false {
		t.Fatalf("create_response = %v, want false", td["create_response"])
	}
	if tr, _ := session["input_audio_transcription"].(map[string]any); tr["model"] != "whisper-1" {
		t.Fatalf("input_audio_transcription = %v, want whisper-1", session["input_audio_transcription"])
	}
	if session["input_audio_format"] != "pcm16" || session["output_audio_format"] != "pcm16" {
		t.Fatalf("audio formats = %v/%v, want pcm16", session["input_audio_format"], session["output_audio_format"])
	}
	toolList, _ := session["tools"].([]any)
	if len(toolList) != 1 || toolList[0].(map[string]any)["name"] != "lookupInventory" {
		t.Fatalf("tools = %v, want lookupInventory", session["tools"])
	}
	if session["instructions"] == "" {
		t.Fatalf("instructions missing")
	}
}

func TestApplyManualSendsNullTurnDetection(t *testing.T) {
	conn := newFakeConn(realtime.StateOpen)
	conn.captureEnabled = true
	newTestConfigurator(t, conn).Apply(ModeManual)

	sent := conn.messages()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	session := sessionJSON(sent[0])
	v, present := session["turn_detection"]
	if !present || v != nil {
		t.Fatalf("turn_detection = %v (present %v), want explicit null", v, present)
	}
	if conn.capture() {
		t.Fatalf("capture enabled, want disabled in manual mode")
	}
}

func TestApplyIsNoopUnlessOpen(t *testing.T) {
	for _, state := range []realtime.State{realtime.StateIdle, realtime.StateConnecting, realtime.StateClosed, realtime.StateError} {
		conn := newFakeConn(state)
		if newTestConfigurator(t, conn).Apply(ModeServerVAD) {
			t.Fatalf("Apply() in %s = true, want false", state)
		}
		if len(conn.messages()) != 0 || conn.capture() {
			t.Fatalf("Apply() in %s changed state", state)
		}
	}
}

func TestMicEnabledFollowsMode(t *testing.T) {
	if !(Config{TurnDetection: ModeServerVAD}).MicEnabled() {
		t.Fatalf("server VAD MicEnabled() = false, want true")
	}
	if (Config{TurnDetection: ModeManual}).MicEnabled() {
		t.Fatalf("manual MicEnabled() = true, want false")
	}
}
