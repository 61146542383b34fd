package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
)

// HTTPBackend queries a REST orders API.
//
// Expected endpoints:
//
//	GET {baseURL}/orders/{orderID}
//	GET {baseURL}/orders?customer_name=<name>
//	GET {baseURL}/orders
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

type HTTPBackendOption func(*HTTPBackend)

func WithHTTPClient(client *http.Client) HTTPBackendOption {
	return func(b *HTTPBackend) {
		if client != nil {
			b.client = client
		}
	}
}

func WithRequestTimeout(timeout time.Duration) HTTPBackendOption {
	return func(b *HTTPBackend) {
		if timeout > 0 {
			b.client.Timeout = timeout
		}
	}
}

func NewHTTPBackend(baseURL string, opts ...HTTPBackendOption) *HTTPBackend {
	b := &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *HTTPBackend) GetOrderStatus(ctx context.Context, orderID string) (Record, error) {
	ctx, span := tracer.Start(ctx, "orders api get order")
	defer span.End()

	endpoint := fmt.Sprintf("%s/orders/%s", b.baseURL, url.PathEscape(orderID))
	status, payload, err := b.getJSON(ctx, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if status >= 400 {
		logger.WarnContext(ctx, "orders api error", "endpoint", endpoint, "status", status)
		return NotFoundRecord(orderID), nil
	}

	record, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected orders api payload for %s", endpoint)
	}
	result := Record{"found": true}
	for key, value := range record {
		result[key] = value
	}
	return result, nil
}

func (b *HTTPBackend) FindOrdersByCustomerName(ctx context.Context, customerName string) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "orders api find by customer")
	defer span.End()

	endpoint := fmt.Sprintf("%s/orders?customer_name=%s", b.baseURL, url.QueryEscape(customerName))
	status, payload, err := b.getJSON(ctx, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if status >= 400 {
		logger.WarnContext(ctx, "orders api error", "endpoint", endpoint, "status", status)
		return []Record{}, nil
	}

	return ordersFromPayload(payload), nil
}

func (b *HTTPBackend) ListOrders(ctx context.Context) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "orders api list")
	defer span.End()

	endpoint := b.baseURL + "/orders"
	status, payload, err := b.getJSON(ctx, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if status >= 400 {
		logger.WarnContext(ctx, "orders api error", "endpoint", endpoint, "status", status)
		return []Record{}, nil
	}

	return ordersFromPayload(payload), nil
}

func (b *HTTPBackend) getJSON(ctx context.Context, endpoint string) (int, any, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build orders api request: %w", err)
	}

	response, err := b.client.Do(request)
	if err != nil {
		return 0, nil, fmt.Errorf("orders api request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read orders api response: %w", err)
	}

	var payload any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return 0, nil, fmt.Errorf("invalid JSON from orders api: %w", err)
		}
	}
	return response.StatusCode, payload, nil
}

// ordersFromPayload accepts either a bare list or an {"orders": [...]}
// envelope, mirroring what different orders API versions return.
func ordersFromPayload(payload any) []Record {
	switch typed := payload.(type) {
	case []any:
		return recordsFromList(typed)
	case map[string]any:
		if list, ok := typed["orders"].([]any); ok {
			return recordsFromList(list)
		}
	}
	return []Record{}
}

func recordsFromList(list []any) []Record {
	records := []Record{}
	for _, entry := range list {
		if record, ok := entry.(map[string]any); ok {
			records = append(records, record)
		}
	}
	return records
}
