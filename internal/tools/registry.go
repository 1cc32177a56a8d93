// Package tools holds the function-calling surface exposed to the realtime
// agent: tool declarations, their implementations and the invoker that
// reports results back over the control channel.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ent0n29/concierge/internal/protocol"
)

var ErrDuplicateTool = errors.New("duplicate tool name")

// Spec declares a callable tool to the remote agent.
type Spec struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

func (s Spec) wire() protocol.Tool {
	return protocol.Tool{
		Type:        s.Type,
		Name:        s.Name,
		Description: s.Description,
		Parameters:  s.Parameters,
	}
}

// Tool is a locally executed function the agent may request.
type Tool interface {
	Spec() Spec
	Run(ctx context.Context, args json.RawMessage) (any, error)
}

// Registry maps tool names to implementations, keeping declaration order
// for the session manifest.
type Registry struct {
	order []string
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(t Tool) error {
	name := t.Spec().Name
	if name == "" {
		return fmt.Errorf("register tool: empty name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.order = append(r.order, name)
	r.tools[name] = t
	return nil
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Specs() []Spec {
	if r == nil {
		return nil
	}
	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Spec())
	}
	return out
}

// Manifest returns the tool declarations in control-channel form.
func (r *Registry) Manifest() []protocol.Tool {
	specs := r.Specs()
	out := make([]protocol.Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.wire())
	}
	return out
}
