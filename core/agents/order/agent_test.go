package order

import (
	"context"
	"testing"

	"github.com/koscakluka/bridge-core/core/lookup"
)

func TestExtractOrderIDNormalizes(t *testing.T) {
	for _, input := range []string{
		"ord 5001",
		"ORD5001",
		"ORD-5001",
		"Wo ist meine Bestellung ORD-5001?",
	} {
		if got := ExtractOrderID(input); got != "ORD-5001" {
			t.Fatalf("ExtractOrderID(%q) = %q, want ORD-5001", input, got)
		}
	}
}

func TestExtractOrderIDIsIdempotent(t *testing.T) {
	once := ExtractOrderID("bitte prüfen sie ord 7342")
	twice := ExtractOrderID(once)
	if once != twice {
		t.Fatalf("normalization is not idempotent: %q then %q", once, twice)
	}
}

func TestExtractOrderIDRequiresThreeDigits(t *testing.T) {
	if got := ExtractOrderID("ORD-12"); got != "" {
		t.Fatalf("expected no match for short id, got %q", got)
	}
}

func TestDecidePassesThroughUnrelatedTurns(t *testing.T) {
	agent := New(nil)

	action := agent.Decide("Wie wird das Wetter morgen?")
	if action.Type != ActionPassThrough {
		t.Fatalf("expected pass-through, got %v", action.Type)
	}
}

func TestDecideLooksUpByOrderID(t *testing.T) {
	agent := New(nil)

	action := agent.Decide("Wo ist meine Bestellung ORD-5001?")
	if action.Type != ActionLookup {
		t.Fatalf("expected lookup, got %v", action.Type)
	}
	if action.Lookup == nil || action.Lookup.OrderID != "ORD-5001" {
		t.Fatalf("expected lookup keyed by ORD-5001, got %+v", action.Lookup)
	}
	if action.Say == "" {
		t.Fatalf("expected a hold-on prompt before the lookup")
	}
	if agent.State().LastOrderID != "ORD-5001" {
		t.Fatalf("expected order id remembered, state %+v", agent.State())
	}
}

func TestDecideCustomerNumberIsNotAnOrderID(t *testing.T) {
	agent := New(nil)

	action := agent.Decide("Meine Kundennummer ist C-1001")
	if action.Type != ActionLookup {
		t.Fatalf("expected lookup, got %v", action.Type)
	}
	if action.Lookup == nil || action.Lookup.OrderID != "" {
		t.Fatalf("customer number must not land in the order-id slot: %+v", action.Lookup)
	}
	if action.Lookup.CustomerName != "C-1001" {
		t.Fatalf("expected lookup keyed by customer identifier, got %+v", action.Lookup)
	}
}

func TestDecideAsksForIdentifierThenAcceptsName(t *testing.T) {
	agent := New(nil)

	first := agent.Decide("Ich habe eine Frage zu meiner Lieferung.")
	if first.Type != ActionAskIdentifier {
		t.Fatalf("expected ask-identifier, got %v", first.Type)
	}
	if !agent.State().AwaitingIdentifier {
		t.Fatalf("expected the agent to arm for the next turn")
	}

	// The follow-up has no order keyword, it is accepted because we asked.
	second := agent.Decide("Max Mustermann")
	if second.Type != ActionLookup {
		t.Fatalf("expected lookup on follow-up, got %v", second.Type)
	}
	if second.Lookup == nil || second.Lookup.CustomerName != "Max Mustermann" {
		t.Fatalf("expected lookup by name, got %+v", second.Lookup)
	}
	if agent.State().AwaitingIdentifier {
		t.Fatalf("expected awaiting flag cleared after the follow-up")
	}
}

func TestDecideExtractsIntroducedNames(t *testing.T) {
	agent := New(nil)

	action := agent.Decide("Mein Name ist Erika Musterfrau, wo ist mein Paket?")
	if action.Type != ActionLookup {
		t.Fatalf("expected lookup, got %v", action.Type)
	}
	if action.Lookup == nil || action.Lookup.CustomerName != "Erika Musterfrau" {
		t.Fatalf("expected introduced name, got %+v", action.Lookup)
	}
}

func TestResetClearsState(t *testing.T) {
	agent := New(nil)
	agent.Decide("Wo bleibt meine Bestellung?")
	agent.Reset()
	if state := agent.State(); state.AwaitingIdentifier || state.LastIntent != "" {
		t.Fatalf("expected clean state after reset, got %+v", state)
	}
}

type stubBackend struct {
	order  lookup.Record
	orders []lookup.Record
	err    error
}

func (s *stubBackend) GetOrderStatus(ctx context.Context, orderID string) (lookup.Record, error) {
	return s.order, s.err
}

func (s *stubBackend) FindOrdersByCustomerName(ctx context.Context, customerName string) ([]lookup.Record, error) {
	return s.orders, s.err
}

func (s *stubBackend) ListOrders(ctx context.Context) ([]lookup.Record, error) {
	return s.orders, s.err
}

func TestLookupByCustomerNameWrapsOrders(t *testing.T) {
	agent := New(&stubBackend{orders: []lookup.Record{{"id": "ORD-5001"}}})

	record, err := agent.Lookup(context.Background(), LookupRequest{CustomerName: "Max Mustermann"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found, _ := record["found"].(bool); !found {
		t.Fatalf("expected found=true envelope, got %v", record)
	}
	orders, _ := record["orders"].([]lookup.Record)
	if len(orders) != 1 {
		t.Fatalf("expected the backend orders in the envelope, got %v", record)
	}
}

func TestLookupWithEmptyResultIsNotFound(t *testing.T) {
	agent := New(&stubBackend{orders: []lookup.Record{}})

	record, err := agent.Lookup(context.Background(), LookupRequest{CustomerName: "John Doe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found, _ := record["found"].(bool); found {
		t.Fatalf("expected found=false for empty result, got %v", record)
	}
}

func TestLookupWithoutIdentifiersIsAnAnswerNotAnError(t *testing.T) {
	agent := New(&stubBackend{})

	record, err := agent.Lookup(context.Background(), LookupRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found, _ := record["found"].(bool); found {
		t.Fatalf("expected found=false, got %v", record)
	}
}

func TestToolsDeclareTheLookupSurface(t *testing.T) {
	tools := Tools()
	if len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools))
	}
	names := map[string]bool{}
	for _, tool := range tools {
		if tool.Type != "function" {
			t.Fatalf("expected function tool, got %q", tool.Type)
		}
		if tool.Parameters == nil {
			t.Fatalf("tool %s has no parameter schema", tool.Name)
		}
		names[tool.Name] = true
	}
	for _, want := range []string{ToolGetOrderStatus, ToolFindOrdersByName, ToolListAllOrders} {
		if !names[want] {
			t.Fatalf("missing tool %s", want)
		}
	}
}
