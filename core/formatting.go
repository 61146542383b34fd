package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/koscakluka/bridge-core/core/lookup"
)

// formatLookupResult turns a lookup payload into a voice-safe summary. The
// speaking layer gets the full record as JSON so it can paraphrase without
// inventing fields; degraded outcomes get short fixed messages.
func (b *Bridge) formatLookupResult(data any) string {
	record, ok := data.(lookup.Record)
	if !ok {
		logger.Warn("lookup result has unexpected shape", "type", fmt.Sprintf("%T", data))
		return b.config.messages.LookupError
	}

	if orders, ok := record["orders"].([]lookup.Record); ok {
		if len(orders) == 0 {
			return b.config.messages.NoOrders
		}
		payload, err := json.MarshalIndent(orders, "", "  ")
		if err != nil {
			return b.config.messages.LookupError
		}
		return fmt.Sprintf("%s\nIch habe %d Bestellungen gefunden:\n%s",
			b.config.messages.ResultIntro, len(orders), payload)
	}

	if found, _ := record["found"].(bool); !found {
		message, _ := record["error"].(string)
		if message == "" {
			message = "Ich habe dazu leider keine Daten gefunden."
		}
		return message + " " + b.config.messages.NotFoundCallToAction
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return b.config.messages.LookupError
	}
	return b.config.messages.ResultIntro + "\n" + string(payload)
}
