package bridge

import (
	"context"
	"strings"

	"github.com/koscakluka/bridge-core/core/agents/order"
	"github.com/koscakluka/bridge-core/core/routing"
	"go.opentelemetry.io/otel/attribute"
)

// handleUserTranscript is the interception-mode protocol: dedupe, route,
// then let the deterministic agent decide whether to take the turn over.
func (b *Bridge) handleUserTranscript(ctx context.Context, text string) {
	ctx, span := tracer.Start(ctx, "handle user transcript")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return
	}
	if b.dedupe.Seen(text) {
		logger.DebugContext(ctx, "duplicate transcript ignored")
		return
	}

	classification := b.classifier.Classify(text)
	span.SetAttributes(
		attribute.String("query.type", string(classification.Type)),
		attribute.Float64("query.confidence", classification.Confidence),
	)

	// Small talk stays with the live model, unless the agent already asked
	// the caller for an identifier and is owed an answer.
	if classification.Type == routing.QueryTypeConversational && !b.agent.State().AwaitingIdentifier {
		return
	}

	action := b.agent.Decide(text)
	switch action.Type {
	case order.ActionPassThrough:
		// The transport's own turn-taking continues undisturbed.

	case order.ActionAskIdentifier:
		b.speak(ctx, action.Say)

	case order.ActionLookup:
		b.runLookup(ctx, action)
	}
}

// runLookup speaks an acknowledgement right away and pushes the actual
// backend call onto the task manager. Refused admission degrades to a spoken
// busy notice; the request is never queued.
func (b *Bridge) runLookup(ctx context.Context, action order.Action) {
	if action.Lookup == nil {
		return
	}
	request := *action.Lookup

	ack := action.Say
	if ack == "" {
		ack = b.nextAckPhrase()
	}
	b.speak(ctx, ack)
	b.callbacks.OnAcknowledgement(ack)

	label := lookupTaskPrefix + "order " + request.OrderID
	if request.OrderID == "" {
		label = lookupTaskPrefix + "customer " + request.CustomerName
	}

	_, admitted := b.tasks.Spawn(label, func(taskCtx context.Context) (any, error) {
		return b.agent.Lookup(taskCtx, request)
	}, b.config.lookupTimeout)
	if !admitted {
		b.callbacks.OnLookupDegraded(b.config.messages.Busy)
		b.speak(ctx, b.config.messages.Busy)
	}
}
