package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/koscakluka/bridge-core/core/agents/order"
	"github.com/koscakluka/bridge-core/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const searchingPayload = `{"status": "searching"}`

// errorToolPayload tells the model to apologize instead of fabricating data.
// Raw diagnostics stay out of the conversation on purpose.
const errorToolPayload = `{"error": "lookup failed", "instructions": "Entschuldige dich kurz. Erfinde keine Bestelldaten."}`

// dispatchToolCall runs the function-calling protocol for one tool call as
// an independent background unit. It must not run inline: waiting for the
// turn to clear can only be observed by the same loop that delivered this
// event, so inline waiting would deadlock.
func (b *Bridge) dispatchToolCall(typedEvent events.ToolCallArgumentsReady) {
	call, ok := b.turns.takeToolCall(typedEvent.CallID)
	if !ok {
		logger.Warn("tool call arguments without a matching request",
			"call_id", typedEvent.CallID, "tool", typedEvent.Name)
		call = pendingToolCall{name: typedEvent.Name, callID: typedEvent.CallID}
	}

	_, admitted := b.tasks.Spawn(toolCallTaskPrefix+call.name, func(taskCtx context.Context) (any, error) {
		b.handleToolCall(taskCtx, call, typedEvent.Arguments)
		return nil, nil
	}, b.config.lookupTimeout)
	if !admitted {
		// Answer the call anyway so the model apologizes instead of hanging
		// on a tool result that will never come.
		busy := fmt.Sprintf(`{"status": "busy", "message": %q}`, b.config.messages.Busy)
		if err := b.session.SendToolResult(call.callID, busy, call.anchorItemID); err != nil {
			logger.Warn("failed to send busy tool result", "error", err)
		}
		b.callbacks.OnLookupDegraded(b.config.messages.Busy)
		b.turns.RequestNext(false)
	}
}

// handleToolCall is the acknowledge, execute, interrupt, deliver sequence:
// wait out the turn that produced the call, answer it with a placeholder so
// the model speaks a filler, run the real lookup, then barge in with the
// real result.
func (b *Bridge) handleToolCall(ctx context.Context, call pendingToolCall, arguments string) {
	ctx, span := tracer.Start(ctx, "handle tool call")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool_call.name", call.name),
		attribute.String("tool_call.id", call.callID),
	)

	b.waitForTurnClear(ctx)

	if err := b.session.SendToolResult(call.callID, searchingPayload, call.anchorItemID); err != nil {
		logger.WarnContext(ctx, "failed to send placeholder tool result", "error", err)
	}
	b.turns.RequestNext(false)

	payload := b.executeTool(ctx, call.name, arguments)

	b.sequencer.Skip()
	b.turns.RequestNext(true)
	if err := b.session.SendToolResult(call.callID, payload, call.anchorItemID); err != nil {
		logger.WarnContext(ctx, "failed to send tool result", "error", err)
		return
	}
	b.turns.RequestNext(false)
	b.callbacks.OnResultDelivered(payload)
}

// executeTool resolves one tool invocation against the lookup backend and
// returns the JSON payload for the tool result. Failures come back as a
// structured apology payload, never as raw error text.
func (b *Bridge) executeTool(ctx context.Context, name, arguments string) string {
	ctx, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool_call.name", name))

	var result any
	var err error

	switch name {
	case order.ToolGetOrderStatus:
		var args struct {
			OrderID string `json:"order_id"`
		}
		if err = json.Unmarshal([]byte(arguments), &args); err == nil {
			orderID := order.ExtractOrderID(args.OrderID)
			if orderID == "" {
				orderID = args.OrderID
			}
			result, err = b.backend.GetOrderStatus(ctx, orderID)
		}

	case order.ToolFindOrdersByName:
		var args struct {
			CustomerName string `json:"customer_name"`
		}
		if err = json.Unmarshal([]byte(arguments), &args); err == nil {
			var orders []map[string]any
			if orders, err = b.backend.FindOrdersByCustomerName(ctx, args.CustomerName); err == nil {
				result = map[string]any{
					"found":         len(orders) > 0,
					"orders":        orders,
					"customer_name": args.CustomerName,
				}
			}
		}

	case order.ToolListAllOrders:
		var orders []map[string]any
		if orders, err = b.backend.ListOrders(ctx); err == nil {
			result = map[string]any{"orders": orders, "count": len(orders)}
		}

	default:
		err = fmt.Errorf("unknown tool %q", name)
	}

	if err != nil {
		err = fmt.Errorf("tool %s failed: %w", name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errorToolPayload
	}

	data, err := json.Marshal(result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errorToolPayload
	}
	return string(data)
}
