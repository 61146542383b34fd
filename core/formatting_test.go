package bridge

import (
	"strings"
	"testing"

	"github.com/koscakluka/bridge-core/core/lookup"
)

func newFormattingBridge(t *testing.T) *Bridge {
	t.Helper()
	b, err := New(&fakeSession{}, WithLookupBackend(&stubBackend{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestFormatSingleRecordCarriesFullPayload(t *testing.T) {
	b := newFormattingBridge(t)

	payload := b.formatLookupResult(lookup.Record{
		"found": true, "id": "ORD-5001", "status": "shipped",
	})
	if !strings.Contains(payload, `"ORD-5001"`) || !strings.Contains(payload, `"shipped"`) {
		t.Fatalf("expected the full record as JSON, got %q", payload)
	}
	if !strings.HasPrefix(payload, defaultMessages().ResultIntro) {
		t.Fatalf("expected the framing intro, got %q", payload)
	}
}

func TestFormatNotFoundAddsCallToAction(t *testing.T) {
	b := newFormattingBridge(t)

	payload := b.formatLookupResult(lookup.NotFoundRecord("ORD-9999"))
	if !strings.Contains(payload, "ORD-9999") {
		t.Fatalf("expected the order id echoed, got %q", payload)
	}
	if !strings.Contains(payload, defaultMessages().NotFoundCallToAction) {
		t.Fatalf("expected the call to action, got %q", payload)
	}
}

func TestFormatOrderListReportsCount(t *testing.T) {
	b := newFormattingBridge(t)

	payload := b.formatLookupResult(lookup.Record{
		"found": true,
		"orders": []lookup.Record{
			{"id": "ORD-5001"},
			{"id": "ORD-5002"},
		},
	})
	if !strings.Contains(payload, "2 Bestellungen") {
		t.Fatalf("expected the count in the summary, got %q", payload)
	}
	if !strings.Contains(payload, "ORD-5002") {
		t.Fatalf("expected the orders included, got %q", payload)
	}
}

func TestFormatEmptyOrderListHasExplicitBranch(t *testing.T) {
	b := newFormattingBridge(t)

	payload := b.formatLookupResult(lookup.Record{
		"found":  false,
		"orders": []lookup.Record{},
	})
	if payload != defaultMessages().NoOrders {
		t.Fatalf("expected the no-results message, got %q", payload)
	}
}

func TestFormatUnexpectedShapeDegradesToApology(t *testing.T) {
	b := newFormattingBridge(t)

	payload := b.formatLookupResult(42)
	if payload != defaultMessages().LookupError {
		t.Fatalf("expected the fixed apology, got %q", payload)
	}
}
