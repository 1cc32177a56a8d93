package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ent0n29/concierge/internal/observability"
	"github.com/ent0n29/concierge/internal/privacy"
	"github.com/ent0n29/concierge/internal/protocol"
)

var (
	ErrArgumentParse = errors.New("tool arguments are not a JSON object")
	ErrUnknownTool   = errors.New("unknown tool")
)

// Sender is the only capability tools get on the realtime connection.
// Implementations drop messages silently once the channel is gone.
type Sender interface {
	Send(msg protocol.OutboundMessage) error
}

// Call is a function call requested by the agent in a response.done event.
type Call struct {
	Name      string
	Arguments string
	CallID    string
}

type Invoker struct {
	registry *Registry
	sender   Sender
	timeout  time.Duration
	metrics  *observability.Metrics
	logger   *slog.Logger
}

type InvokerOption func(*Invoker)

func WithTimeout(d time.Duration) InvokerOption {
	return func(i *Invoker) { i.timeout = d }
}

func WithMetrics(m *observability.Metrics) InvokerOption {
	return func(i *Invoker) { i.metrics = m }
}

func WithLogger(l *slog.Logger) InvokerOption {
	return func(i *Invoker) { i.logger = l }
}

func NewInvoker(registry *Registry, sender Sender, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		registry: registry,
		sender:   sender,
		timeout:  20 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke runs one tool call to completion. On success it sends the
// function_call_output item followed by a response.create so the agent
// continues speaking. Failures are logged and nothing is sent.
func (i *Invoker) Invoke(ctx context.Context, call Call) error {
	log := i.logger.With("tool", call.Name, "call_id", call.CallID)

	args := json.RawMessage(call.Arguments)
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(args, &obj); err != nil || obj == nil {
		i.metrics.ObserveToolCall(call.Name, "bad_arguments", 0)
		log.Warn("tool arguments rejected", "error", err)
		return fmt.Errorf("%w: %s", ErrArgumentParse, call.Name)
	}

	tool, ok := i.registry.Lookup(call.Name)
	if !ok {
		i.metrics.ObserveToolCall(call.Name, "unknown", 0)
		log.Warn("tool not registered")
		return fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	log.Debug("tool invoked", "arguments", privacy.String(call.Arguments))
	started := time.Now()
	result, err := tool.Run(ctx, args)
	elapsed := time.Since(started)
	if err != nil {
		i.metrics.ObserveToolCall(call.Name, "error", elapsed)
		log.Warn("tool failed", "error", err, "elapsed_ms", elapsed.Milliseconds())
		return fmt.Errorf("tool %s: %w", call.Name, err)
	}

	output, err := json.Marshal(result)
	if err != nil {
		i.metrics.ObserveToolCall(call.Name, "error", elapsed)
		log.Warn("tool result not serializable", "error", err)
		return fmt.Errorf("marshal %s result: %w", call.Name, err)
	}
	i.metrics.ObserveToolCall(call.Name, "ok", elapsed)
	log.Info("tool completed", "elapsed_ms", elapsed.Milliseconds())

	if err := i.sender.Send(protocol.NewFunctionCallOutput(call.CallID, string(output))); err != nil {
		log.Debug("tool output dropped", "error", err)
		return nil
	}
	if err := i.sender.Send(protocol.NewResponseCreate()); err != nil {
		log.Debug("continuation dropped", "error", err)
	}
	return nil
}
