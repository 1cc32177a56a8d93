package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ent0n29/concierge/internal/observability"
	"github.com/ent0n29/concierge/internal/protocol"
	"github.com/ent0n29/concierge/internal/realtime"
	"github.com/ent0n29/concierge/internal/reliability"
	"github.com/ent0n29/concierge/internal/tools"
	"github.com/ent0n29/concierge/internal/transcript"
)

const inaudible = "[inaudible]"

// Dispatcher routes inbound control-channel events to the transcript store
// and the tool invoker. It runs on the session loop; only tool execution
// leaves it.
type Dispatcher struct {
	store   *transcript.Store
	channel Channel
	invoker *tools.Invoker
	metrics *observability.Metrics
	logger  *slog.Logger

	toolCtx context.Context
	tools   sync.WaitGroup

	// committedAt marks the last completed user transcript for turn latency.
	committedAt time.Time
}

func NewDispatcher(ctx context.Context, store *transcript.Store, channel Channel, invoker *tools.Invoker, metrics *observability.Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:   store,
		channel: channel,
		invoker: invoker,
		metrics: metrics,
		logger:  logger,
		toolCtx: ctx,
	}
}

// Handle processes one raw inbound message. Malformed or unknown events are
// logged and otherwise ignored.
func (d *Dispatcher) Handle(raw []byte) {
	ev, err := protocol.ParseServerEvent(raw)
	if err != nil {
		d.metrics.ObserveInbound("invalid")
		d.logger.Warn("inbound event undecodable", "error", err)
		return
	}
	d.metrics.ObserveInbound(string(ev.EventType()))
	d.Dispatch(ev)
}

func (d *Dispatcher) Dispatch(ev protocol.ServerEvent) {
	switch e := ev.(type) {
	case protocol.ItemCreated:
		d.itemCreated(e)
	case protocol.InputTranscriptionDelta:
		if e.ItemID == "" {
			return
		}
		d.store.Create(e.ItemID, transcript.RoleUser, "")
		d.store.Update(e.ItemID, e.Delta, transcript.ModeAppend)
	case protocol.InputTranscriptionCompleted:
		d.transcriptionCompleted(e)
	case protocol.AssistantTranscriptDelta:
		if e.ItemID == "" {
			return
		}
		if !d.committedAt.IsZero() {
			d.metrics.ObserveTurn(time.Since(d.committedAt))
			d.committedAt = time.Time{}
		}
		d.store.Create(e.ItemID, transcript.RoleAssistant, "")
		d.store.Update(e.ItemID, e.Delta, transcript.ModeAppend)
	case protocol.ResponseDone:
		for _, call := range e.FunctionCalls() {
			d.startTool(tools.Call{Name: call.Name, Arguments: call.Arguments, CallID: call.CallID})
		}
	case protocol.ServerError:
		d.logger.Warn("realtime service error",
			"type", e.Error.Type,
			"code", e.Error.Code,
			"message", e.Error.Message,
			"retryable", reliability.IsRetryableServerError(e.Error.Type, e.Error.Code),
		)
	case protocol.Unrecognized:
		d.logger.Info("unhandled event", "type", e.Type)
	default:
		d.logger.Debug("event ignored", "type", ev.EventType())
	}
}

func (d *Dispatcher) itemCreated(e protocol.ItemCreated) {
	text := e.Item.FirstText()
	if e.Item.ID == "" || text == "" {
		return
	}
	switch e.Item.Role {
	case "user":
		d.store.Create(e.Item.ID, transcript.RoleUser, text)
	case "assistant":
		d.store.Create(e.Item.ID, transcript.RoleAssistant, text)
	}
}

func (d *Dispatcher) transcriptionCompleted(e protocol.InputTranscriptionCompleted) {
	if e.ItemID == "" {
		return
	}
	final := e.Transcript
	if strings.TrimSpace(final) == "" {
		final = inaudible
	}
	d.store.Create(e.ItemID, transcript.RoleUser, "")
	d.store.Update(e.ItemID, final, transcript.ModeReplace)

	if d.channel.State() == realtime.StateOpen {
		d.committedAt = time.Now()
		_ = d.channel.Send(protocol.NewResponseCreate())
	}
}

func (d *Dispatcher) startTool(call tools.Call) {
	if d.invoker == nil {
		d.logger.Warn("tool call without invoker", "tool", call.Name)
		return
	}
	d.tools.Add(1)
	go func() {
		defer d.tools.Done()
		_ = d.invoker.Invoke(d.toolCtx, call)
	}()
}

// Wait blocks until every started tool call has finished.
func (d *Dispatcher) Wait() {
	d.tools.Wait()
}
