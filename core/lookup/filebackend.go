package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// FileBackend reads orders and customers from a JSON document on disk. The
// file is reloaded on every call so the data can change without restarting
// anything.
//
// Expected document shape:
//
//	{
//	  "customers": [{"id": "C-1001", "name": "Max Mustermann", "aliases": ["max"]}],
//	  "orders":    [{"id": "ORD-5001", "customer_id": "C-1001", "status": "shipped", ...}]
//	}
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

type fileDocument struct {
	Customers []Record `json:"customers"`
	Orders    []Record `json:"orders"`
}

func (b *FileBackend) load() (*fileDocument, error) {
	raw, err := os.ReadFile(b.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read customer data file %s: %w", b.path, err)
	}

	var document fileDocument
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", b.path, err)
	}
	return &document, nil
}

// customerIndexes builds id and normalized-name (including alias) indexes.
func (d *fileDocument) customerIndexes() (byID, byName map[string]Record) {
	byID = map[string]Record{}
	byName = map[string]Record{}
	for _, customer := range d.Customers {
		id := strings.TrimSpace(stringField(customer, "id"))
		name := strings.TrimSpace(stringField(customer, "name"))
		if id != "" {
			byID[id] = customer
		}
		if name != "" {
			byName[normalizeName(name)] = customer
		}
		aliases, _ := customer["aliases"].([]any)
		for _, alias := range aliases {
			if aliasName, ok := alias.(string); ok && strings.TrimSpace(aliasName) != "" {
				byName[normalizeName(aliasName)] = customer
			}
		}
	}
	return byID, byName
}

func (b *FileBackend) GetOrderStatus(ctx context.Context, orderID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	document, err := b.load()
	if err != nil {
		return nil, err
	}
	customersByID, _ := document.customerIndexes()

	wanted := strings.ToUpper(strings.TrimSpace(orderID))
	for _, order := range document.Orders {
		if strings.ToUpper(strings.TrimSpace(stringField(order, "id"))) != wanted {
			continue
		}

		result := Record{"found": true}
		for key, value := range order {
			result[key] = value
		}
		customerID := strings.TrimSpace(stringField(order, "customer_id"))
		if customer, ok := customersByID[customerID]; ok {
			result["customer_name"] = customer["name"]
		}
		return result, nil
	}

	return NotFoundRecord(orderID), nil
}

func (b *FileBackend) FindOrdersByCustomerName(ctx context.Context, customerName string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	document, err := b.load()
	if err != nil {
		return nil, err
	}
	_, customersByName := document.customerIndexes()

	customer, ok := customersByName[normalizeName(customerName)]
	if !ok {
		return []Record{}, nil
	}
	customerID := strings.TrimSpace(stringField(customer, "id"))
	if customerID == "" {
		return []Record{}, nil
	}
	name := stringField(customer, "name")

	results := []Record{}
	for _, order := range document.Orders {
		if strings.TrimSpace(stringField(order, "customer_id")) != customerID {
			continue
		}
		row := Record{}
		for key, value := range order {
			row[key] = value
		}
		row["customer_name"] = name
		results = append(results, row)
	}
	return results, nil
}

func (b *FileBackend) ListOrders(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	document, err := b.load()
	if err != nil {
		return nil, err
	}
	customersByID, _ := document.customerIndexes()

	results := []Record{}
	for _, order := range document.Orders {
		row := Record{}
		for key, value := range order {
			row[key] = value
		}
		customerID := strings.TrimSpace(stringField(order, "customer_id"))
		if customer, ok := customersByID[customerID]; ok {
			if name := stringField(customer, "name"); name != "" {
				row["customer_name"] = name
			}
		}
		results = append(results, row)
	}
	return results, nil
}

func stringField(record Record, key string) string {
	if value, ok := record[key].(string); ok {
		return value
	}
	return ""
}
