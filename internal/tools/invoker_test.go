package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/ent0n29/concierge/internal/protocol"
)

type recordingSender struct {
	mu     sync.Mutex
	closed bool
	sent   []protocol.OutboundMessage
}

func (s *recordingSender) Send(msg protocol.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("channel not open")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []protocol.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.OutboundMessage(nil), s.sent...)
}

type stubTool struct {
	name   string
	result any
	err    error
	gotArg json.RawMessage
}

func (s *stubTool) Spec() Spec {
	return Spec{Type: "function", Name: s.name, Parameters: json.RawMessage(`{"type":"object"}`)}
}

func (s *stubTool) Run(_ context.Context, args json.RawMessage) (any, error) {
	s.gotArg = args
	return s.result, s.err
}

func TestInvokeSendsOutputThenResponseCreate(t *testing.T) {
	tool := &stubTool{name: "lookupInventory", result: map[string]any{"success": true}}
	reg, err := NewRegistry(tool)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	sender := &recordingSender{}

	err = NewInvoker(reg, sender).Invoke(context.Background(), Call{
		Name:      "lookupInventory",
		Arguments: `{"brand":"any"}`,
		CallID:    "c1",
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	sent := sender.messages()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	out, ok := sent[0].(protocol.ConversationItemCreate)
	if !ok {
		t.Fatalf("sent[0] = %T, want ConversationItemCreate", sent[0])
	}
	if out.Item.Type != "function_call_output" || out.Item.CallID != "c1" {
		t.Fatalf("unexpected output item: %+v", out.Item)
	}
	if out.Item.Output != `{"success":true}` {
		t.Fatalf("Output = %q, want %q", out.Item.Output, `{"success":true}`)
	}
	if _, ok := sent[1].(protocol.ResponseCreate); !ok {
		t.Fatalf("sent[1] = %T, want ResponseCreate", sent[1])
	}
	if string(tool.gotArg) != `{"brand":"any"}` {
		t.Fatalf("tool args = %s, want passthrough", tool.gotArg)
	}
}

func TestInvokeRejectsMalformedArguments(t *testing.T) {
	tool := &stubTool{name: "lookupInventory"}
	reg, _ := NewRegistry(tool)
	sender := &recordingSender{}

	for _, args := range []string{`{"brand":`, `[1,2]`, `null`, ``} {
		err := NewInvoker(reg, sender).Invoke(context.Background(), Call{Name: "lookupInventory", Arguments: args, CallID: "c1"})
		if !errors.Is(err, ErrArgumentParse) {
			t.Fatalf("Invoke(%q) error = %v, want ErrArgumentParse", args, err)
		}
	}
	if len(sender.messages()) != 0 {
		t.Fatalf("sent %d messages, want 0", len(sender.messages()))
	}
	if tool.gotArg != nil {
		t.Fatalf("tool ran with %s, want not run", tool.gotArg)
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	reg, _ := NewRegistry()
	sender := &recordingSender{}
	err := NewInvoker(reg, sender).Invoke(context.Background(), Call{Name: "orderPizza", Arguments: `{}`, CallID: "c9"})
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("error = %v, want ErrUnknownTool", err)
	}
	if len(sender.messages()) != 0 {
		t.Fatalf("sent %d messages, want 0", len(sender.messages()))
	}
}

func TestInvokeToolErrorSendsNothing(t *testing.T) {
	reg, _ := NewRegistry(&stubTool{name: "lookupInventory", err: errors.New("catalog down")})
	sender := &recordingSender{}
	if err := NewInvoker(reg, sender).Invoke(context.Background(), Call{Name: "lookupInventory", Arguments: `{}`, CallID: "c1"}); err == nil {
		t.Fatalf("Invoke() expected error")
	}
	if len(sender.messages()) != 0 {
		t.Fatalf("sent %d messages, want 0", len(sender.messages()))
	}
}

func TestInvokeAfterDisconnectDropsSilently(t *testing.T) {
	reg, _ := NewRegistry(&stubTool{name: "lookupInventory", result: "ok"})
	sender := &recordingSender{closed: true}
	if err := NewInvoker(reg, sender).Invoke(context.Background(), Call{Name: "lookupInventory", Arguments: `{}`, CallID: "c1"}); err != nil {
		t.Fatalf("Invoke() error = %v, want nil", err)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(&stubTool{name: "a"}, &stubTool{name: "a"})
	if !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("error = %v, want ErrDuplicateTool", err)
	}
}

func TestRegistryManifestKeepsOrder(t *testing.T) {
	reg, _ := NewRegistry(&stubTool{name: "b"}, &stubTool{name: "a"})
	manifest := reg.Manifest()
	if len(manifest) != 2 || manifest[0].Name != "b" || manifest[1].Name != "a" {
		t.Fatalf("Manifest() = %+v, want [b a]", manifest)
	}
}
