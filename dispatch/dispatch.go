// Package dispatch routes one tool call through lookup, validation and the
// handler, turning every failure into a structured error payload.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/slighter12/vault-mcp-go/host"
	"github.com/slighter12/vault-mcp-go/i18n"
	"github.com/slighter12/vault-mcp-go/logger"
	"github.com/slighter12/vault-mcp-go/notify"
	"github.com/slighter12/vault-mcp-go/schema"
	"github.com/slighter12/vault-mcp-go/tools"
	"github.com/slighter12/vault-mcp-go/tools/types"
)

// Envelope carries one call in and its result or error out.
type Envelope struct {
	ToolName  string          `json:"toolName"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    any             `json:"result,omitempty"`
	Error     map[string]any  `json:"error,omitempty"`
}

// Failed reports whether the call produced an error payload.
func (e Envelope) Failed() bool {
	return e.Error != nil
}

// Message returns the error message, or "" for successful calls.
func (e Envelope) Message() string {
	msg, _ := e.Error["error"].(string)
	return msg
}

type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeInvalidParams Outcome = "invalid_params"
	OutcomeError         Outcome = "error"
	OutcomePanic         Outcome = "panic"
)

// Observation describes one finished call.
type Observation struct {
	Tool      string
	Outcome   Outcome
	ErrorKind string
	Duration  time.Duration
}

// Observer receives an Observation after every call.
type Observer interface {
	Observe(ctx context.Context, obs Observation)
}

type Dispatcher struct {
	provider host.Provider
	sink     notify.Sink
	messages i18n.Lookup
	observer Observer
}

type Option func(*Dispatcher)

// WithSink reports handler panics to sink.
func WithSink(sink notify.Sink) Option {
	return func(d *Dispatcher) {
		if sink != nil {
			d.sink = sink
		}
	}
}

func WithMessages(lookup i18n.Lookup) Option {
	return func(d *Dispatcher) {
		if lookup != nil {
			d.messages = lookup
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(d *Dispatcher) {
		d.observer = observer
	}
}

func New(provider host.Provider, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		provider: provider,
		sink:     notify.LogSink{},
		messages: i18n.Static(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs the call named by in against snap. It always returns an
// envelope; failures are reported in its Error field.
func (d *Dispatcher) Dispatch(ctx context.Context, snap *tools.Snapshot, in Envelope) Envelope {
	start := time.Now()
	out := Envelope{ToolName: in.ToolName, Arguments: in.Arguments}
	obs := Observation{Tool: in.ToolName, Outcome: OutcomeSuccess}
	defer func() {
		if d.observer != nil {
			obs.Duration = time.Since(start)
			d.observer.Observe(ctx, obs)
		}
	}()

	def, ok := snap.Lookup(in.ToolName)
	if !ok {
		obs.Outcome = OutcomeNotFound
		out.Error = map[string]any{
			"error": fmt.Sprintf("Tool not found: %s", in.ToolName),
			"tool":  in.ToolName,
		}
		return out
	}

	args, err := decode(def, in.Arguments)
	if err != nil {
		obs.Outcome = OutcomeInvalidParams
		out.Error = invalidParams(def.Name, err)
		return out
	}

	result, err := d.invoke(ctx, def, args)
	if err != nil {
		var pe *panicError
		if errors.As(err, &pe) {
			obs.Outcome = OutcomePanic
			out.Error = map[string]any{"error": pe.message, "tool": def.Name, "kind": "internal"}
			return out
		}
		toolErr := types.FromError(err)
		if toolErr == nil {
			toolErr = &types.ToolError{Message: err.Error(), Err: err}
		}
		obs.Outcome = OutcomeError
		obs.ErrorKind = toolErr.Kind
		logger.DebugContext(ctx, "Tool call failed", "tool", def.Name, "error", err)
		out.Error = errorPayload(toolErr)
		return out
	}

	out.Result = result
	return out
}

func decode(def types.Definition, raw json.RawMessage) (schema.Args, error) {
	decoded, err := schema.DecodeArguments(raw)
	if err != nil {
		return nil, err
	}
	return schema.Validate(def.Schema, decoded)
}

func invalidParams(tool string, err error) map[string]any {
	payload := map[string]any{
		"error": fmt.Sprintf("Invalid parameters for %s: %v", tool, err),
		"tool":  tool,
	}
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		payload["details"] = verr.Errors
	}
	return payload
}

func errorPayload(toolErr *types.ToolError) map[string]any {
	payload := make(map[string]any, len(toolErr.Data)+2)
	for key, value := range toolErr.Data {
		payload[key] = value
	}
	if toolErr.Kind != "" {
		payload["kind"] = toolErr.Kind
	}
	payload["error"] = toolErr.Error()
	return payload
}

type panicError struct {
	message string
}

func (e *panicError) Error() string { return e.message }

func (d *Dispatcher) invoke(ctx context.Context, def types.Definition, args schema.Args) (result any, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		logger.ErrorContext(ctx, "Tool handler panicked",
			"tool", def.Name,
			"panic", r,
			"stack", string(debug.Stack()),
		)
		msg := d.messages(i18n.ToolFailed, map[string]any{"tool": def.Name, "error": r})
		d.sink.Notify(notify.Notice{Level: notify.LevelError, Key: i18n.ToolFailed, Message: msg})
		result, err = nil, &panicError{message: msg}
	}()
	return def.Handler(ctx, args, d.provider)
}
