// Package order implements a deterministic, multi-turn fallback agent for the
// order-status use case. It never calls a model: intent gating, identifier
// extraction, and prompts are all rule-based, which keeps the interception
// path predictable when the realtime model is bypassed.
package order

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/bridge-core/core/lookup"
	"go.opentelemetry.io/otel/codes"
)

type ActionType string

const (
	// ActionPassThrough hands the turn back to the realtime model untouched.
	ActionPassThrough ActionType = "pass_through"
	// ActionAskIdentifier asks the caller for an order number or name.
	ActionAskIdentifier ActionType = "ask_identifier"
	// ActionLookup runs a backend lookup and speaks the result.
	ActionLookup ActionType = "lookup"
)

// LookupRequest carries exactly one identifier. CustomerName doubles as the
// slot for customer numbers, so "key by who, not by which order" holds even
// when the caller only knows their account id.
type LookupRequest struct {
	OrderID      string
	CustomerName string
}

type Action struct {
	Type   ActionType
	Say    string
	Lookup *LookupRequest
}

// ConversationState is the agent's memory across turns.
type ConversationState struct {
	AwaitingIdentifier bool
	LastIntent         string
	LastCustomerName   string
	LastOrderID        string
}

var orderIntentRe = regexp.MustCompile(`(?i)\b(` +
	`order|orders|` +
	`bestellung|bestellungen|bestellen|bestellt|` +
	`lieferung|lieferstatus|lieferzeit|zustellung|` +
	`versand|sendung|paket|tracking|` +
	`kundennummer|kundenkonto|` +
	`status` +
	`)\b`)

var orderIDRe = regexp.MustCompile(`(?i)\bORD[-\s]?\d{3,}\b`)

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:my name is|i am|this is)\s+([A-Za-zÄÖÜäöüß\-]+\s+[A-Za-zÄÖÜäöüß\-]+)\b`),
	regexp.MustCompile(`(?i)(?:ich bin|mein name ist)\s+([A-Za-zÄÖÜäöüß\-]+\s+[A-Za-zÄÖÜäöüß\-]+)\b`),
}

var customerNumberRe = regexp.MustCompile(`(?i)(?:kundennummer|customer number)\s+(?:ist\s+|is\s+)?([A-Za-z]{1,3}-?\d+)\b`)

// ExtractOrderID pulls an order id out of free text and normalizes it to the
// canonical ORD-<digits> form. Idempotent: feeding a canonical id back in
// yields the same id.
func ExtractOrderID(text string) string {
	match := orderIDRe.FindString(text)
	if match == "" {
		return ""
	}
	id := strings.ToUpper(match)
	id = strings.ReplaceAll(id, " ", "")
	id = strings.ReplaceAll(id, "ORD", "ORD-")
	id = strings.ReplaceAll(id, "ORD--", "ORD-")
	return id
}

func extractCustomerName(text string) string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return ""
	}

	for _, pattern := range namePatterns {
		if match := pattern.FindStringSubmatch(cleaned); match != nil {
			return strings.TrimSpace(match[1])
		}
	}

	// A bare two-word turn ("Max Mustermann") is taken as the caller's name.
	tokens := strings.Fields(cleaned)
	if len(tokens) == 2 && startsWithLetter(tokens[0]) && startsWithLetter(tokens[1]) {
		return cleaned
	}
	return ""
}

func extractCustomerNumber(text string) string {
	if match := customerNumberRe.FindStringSubmatch(text); match != nil {
		return strings.ToUpper(match[1])
	}
	return ""
}

func startsWithLetter(token string) bool {
	for _, r := range token {
		return unicode.IsLetter(r)
	}
	return false
}

// Agent decides, turn by turn, whether to intercept order questions or let
// them pass through to the realtime model.
type Agent struct {
	backend lookup.Backend

	mu    sync.Mutex
	state ConversationState
}

func New(backend lookup.Backend) *Agent {
	return &Agent{backend: backend}
}

// State returns a copy of the conversation state.
func (a *Agent) State() ConversationState {
	a.mu.Lock()
	defer a.mu.Unlock()

	var snapshot ConversationState
	copier.Copy(&snapshot, &a.state)
	return snapshot
}

// Reset clears the multi-turn memory, e.g. when a new session starts.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = ConversationState{}
}

// Decide maps one user turn to an action. It mutates the conversation state:
// an AskIdentifier arms the agent so the next turn is treated as candidate
// identifier info even without an order keyword.
func (a *Agent) Decide(transcript string) Action {
	text := strings.TrimSpace(transcript)
	if text == "" {
		return Action{Type: ActionPassThrough}
	}

	orderID := ExtractOrderID(text)
	customerName := extractCustomerName(text)
	customerNumber := extractCustomerNumber(text)

	a.mu.Lock()
	defer a.mu.Unlock()

	orderRelated := orderIntentRe.MatchString(text) || a.state.AwaitingIdentifier
	if !orderRelated {
		return Action{Type: ActionPassThrough}
	}
	a.state.AwaitingIdentifier = false
	a.state.LastIntent = "order_status"

	if orderID != "" {
		a.state.LastOrderID = orderID
		return Action{
			Type:   ActionLookup,
			Say:    "Einen Moment bitte, ich prüfe den Status Ihrer Bestellung.",
			Lookup: &LookupRequest{OrderID: orderID},
		}
	}

	if customerName == "" {
		customerName = customerNumber
	}
	if customerName != "" {
		a.state.LastCustomerName = customerName
		return Action{
			Type:   ActionLookup,
			Say:    "Danke. Einen Moment bitte, ich schaue Ihre letzten Bestellungen nach.",
			Lookup: &LookupRequest{CustomerName: customerName},
		}
	}

	a.state.AwaitingIdentifier = true
	return Action{
		Type: ActionAskIdentifier,
		Say: "Gerne. Können Sie mir bitte Ihre Bestellnummer nennen, " +
			"zum Beispiel ORD-<nummer>, oder alternativ Ihren Namen?",
	}
}

// Lookup executes a decided lookup against the backend. Customer-name lookups
// wrap the order list in an envelope so the speaking layer can tell an empty
// result from a failed one.
func (a *Agent) Lookup(ctx context.Context, request LookupRequest) (lookup.Record, error) {
	ctx, span := tracer.Start(ctx, "order agent lookup")
	defer span.End()

	switch {
	case request.OrderID != "":
		record, err := a.backend.GetOrderStatus(ctx, request.OrderID)
		if err != nil {
			err = fmt.Errorf("order status lookup failed: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		return record, nil
	case request.CustomerName != "":
		orders, err := a.backend.FindOrdersByCustomerName(ctx, request.CustomerName)
		if err != nil {
			err = fmt.Errorf("customer orders lookup failed: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		return lookup.Record{
			"found":         len(orders) > 0,
			"orders":        orders,
			"customer_name": request.CustomerName,
		}, nil
	default:
		logger.WarnContext(ctx, "lookup requested without identifiers")
		return lookup.Record{"found": false, "error": "No lookup parameters provided."}, nil
	}
}
