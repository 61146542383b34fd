// Package routing decides whether an utterance can be answered directly by
// the conversational transport or needs a background data lookup.
//
// Classification is a pure function of the text and the configured keyword
// and pattern sets; it keeps no history and is safe to call from the event
// dispatch path.
package routing

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// QueryType is the routing decision for an utterance.
type QueryType string

const (
	// QueryTypeSimple is handled directly by the transport.
	QueryTypeSimple QueryType = "simple"
	// QueryTypeDataLookup needs a background lookup before answering.
	QueryTypeDataLookup QueryType = "data_lookup"
	// QueryTypeConversational is chitchat and greetings.
	QueryTypeConversational QueryType = "conversational"
)

// Classification is the outcome of classifying one utterance.
type Classification struct {
	Type            QueryType
	Confidence      float64
	MatchedKeywords []string
	Reason          string
}

// Config holds the keyword and pattern sets the classifier matches against.
// The zero value is unusable; use DefaultConfig as a starting point.
type Config struct {
	// DataKeywords indicate a lookup is needed. Multi-word keywords score
	// an extra half point.
	DataKeywords []string
	// ConversationalKeywords short-circuit to chitchat when the data score
	// stays below the conversational floor.
	ConversationalKeywords []string
	// DataPatterns are regexes that immediately classify as a data lookup.
	DataPatterns []string
	// ConfidenceThreshold is the minimum keyword score for a data lookup.
	ConfidenceThreshold float64
}

// DefaultConfig returns the stock order/customer-domain configuration.
func DefaultConfig() Config {
	return Config{
		DataKeywords: []string{
			"customer", "machine", "machines", "address", "addresses",
			"serial", "serial number", "model", "equipment",
			"location", "site", "installation",
			"lookup", "look up", "find", "search", "get", "fetch",
			"show", "display", "list", "retrieve",
			"how many", "what is", "what are", "tell me about",
			"information about", "details about", "data for",
			"status of", "history of",
			"record", "records", "data", "database", "order", "orders",
			"bestellung", "bestellungen", "lieferung", "sendung",
			"product", "products", "inventory", "stock",
		},
		ConversationalKeywords: []string{
			"hello", "hi", "hey", "good morning", "good afternoon",
			"good evening", "how are you", "what's up", "thanks",
			"thank you", "bye", "goodbye", "see you", "ok", "okay",
			"yes", "no", "sure", "alright", "got it", "understand",
			"help", "what can you do", "who are you",
			"hallo", "wie geht es", "danke",
		},
		DataPatterns: []string{
			`^(what|which|where|when|how many|how much|wo|welche)\s+.*(customer|machine|address|order|product|bestellung|kunde)`,
			`(customer|machine|address|order|bestellung)\s*(id|number|nummer|#)?\s*\d+`,
			`(find|search|lookup|get|show)\s+(me\s+)?(the\s+)?(customer|machine|address|data|order)`,
			`(information|details|data|status)\s+(about|for|on)\s+`,
		},
		ConfidenceThreshold: 0.3,
	}
}

// conversationalFloor is the data score below which a conversational keyword
// match wins over lookup indicators.
const conversationalFloor = 0.2

// patternConfidence is assigned when a data pattern matches, short-circuiting
// keyword scoring.
const patternConfidence = 0.9

const conversationalConfidence = 0.8

// Classifier routes utterances by keyword and pattern heuristics. Keywords
// are hot-swappable at runtime; swapping never reclassifies history.
type Classifier struct {
	mu sync.RWMutex

	config       Config
	dataPatterns []*regexp.Regexp
	dataKeywords []string
	convKeywords []string
}

// NewClassifier compiles the configured patterns. Invalid patterns are
// rejected rather than silently dropped.
func NewClassifier(config Config) (*Classifier, error) {
	patterns := make([]*regexp.Regexp, 0, len(config.DataPatterns))
	for _, pattern := range config.DataPatterns {
		compiled, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile data pattern %q: %w", pattern, err)
		}
		patterns = append(patterns, compiled)
	}

	c := &Classifier{
		config:       config,
		dataPatterns: patterns,
		dataKeywords: lowered(config.DataKeywords),
		convKeywords: lowered(config.ConversationalKeywords),
	}
	return c, nil
}

func lowered(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		out = append(out, strings.ToLower(keyword))
	}
	return out
}

// Classify routes a single utterance.
func (c *Classifier) Classify(text string) Classification {
	if strings.TrimSpace(text) == "" {
		return Classification{Type: QueryTypeSimple, Confidence: 1.0, Reason: "empty query"}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	textLower := strings.ToLower(strings.TrimSpace(text))

	for _, keyword := range c.convKeywords {
		if !strings.Contains(textLower, keyword) {
			continue
		}
		if c.scoreDataKeywordsLocked(textLower) < conversationalFloor {
			return Classification{
				Type:            QueryTypeConversational,
				Confidence:      conversationalConfidence,
				MatchedKeywords: []string{keyword},
				Reason:          "matched conversational keyword",
			}
		}
	}

	for _, pattern := range c.dataPatterns {
		if pattern.MatchString(textLower) {
			return Classification{
				Type:       QueryTypeDataLookup,
				Confidence: patternConfidence,
				Reason:     fmt.Sprintf("matched data pattern: %s", pattern.String()),
			}
		}
	}

	score := c.scoreDataKeywordsLocked(textLower)
	if score >= c.config.ConfidenceThreshold {
		return Classification{
			Type:            QueryTypeDataLookup,
			Confidence:      min(score, 1.0),
			MatchedKeywords: c.matchedKeywordsLocked(textLower),
			Reason:          fmt.Sprintf("keyword score: %.2f", score),
		}
	}

	return Classification{
		Type:       QueryTypeSimple,
		Confidence: 1.0 - score,
		Reason:     "no data lookup indicators found",
	}
}

// scoreDataKeywordsLocked maps the keyword match count through fixed
// confidence tiers. Multi-word keywords weigh an extra half point.
func (c *Classifier) scoreDataKeywordsLocked(textLower string) float64 {
	matches := 0.0
	for _, keyword := range c.dataKeywords {
		if strings.Contains(textLower, keyword) {
			matches++
			if strings.Contains(keyword, " ") {
				matches += 0.5
			}
		}
	}

	switch matches {
	case 0:
		return 0.0
	case 1:
		return 0.4
	case 2:
		return 0.6
	default:
		// Fractional counts (multi-word bonus) land here as well.
		return min(0.4+matches*0.2, 1.0)
	}
}

func (c *Classifier) matchedKeywordsLocked(textLower string) []string {
	matched := []string{}
	for _, keyword := range c.dataKeywords {
		if strings.Contains(textLower, keyword) {
			matched = append(matched, keyword)
		}
	}
	return matched
}

// AddDataKeyword registers an additional lookup keyword at runtime.
func (c *Classifier) AddDataKeyword(keyword string) {
	keywordLower := strings.ToLower(keyword)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.dataKeywords {
		if existing == keywordLower {
			return
		}
	}
	c.dataKeywords = append(c.dataKeywords, keywordLower)
}

// RemoveDataKeyword drops a lookup keyword at runtime.
func (c *Classifier) RemoveDataKeyword(keyword string) {
	keywordLower := strings.ToLower(keyword)
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.dataKeywords {
		if existing == keywordLower {
			c.dataKeywords = append(c.dataKeywords[:i], c.dataKeywords[i+1:]...)
			return
		}
	}
}
