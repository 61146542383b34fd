package bridge

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const dedupeKeyRunes = 100

// transcriptDedupe suppresses re-delivered transcripts. Keys are case-folded
// prefixes so minor punctuation tails do not defeat the match; the LRU bound
// keeps memory flat over long sessions.
type transcriptDedupe struct {
	cache *lru.Cache[string, struct{}]
}

func newTranscriptDedupe(size int) (*transcriptDedupe, error) {
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &transcriptDedupe{cache: cache}, nil
}

// Seen records the transcript and reports whether it was already known.
func (d *transcriptDedupe) Seen(text string) bool {
	key := dedupeKey(text)
	if _, ok := d.cache.Get(key); ok {
		return true
	}
	d.cache.Add(key, struct{}{})
	return false
}

func dedupeKey(text string) string {
	key := strings.ToLower(strings.TrimSpace(text))
	runes := []rune(key)
	if len(runes) > dedupeKeyRunes {
		return string(runes[:dedupeKeyRunes])
	}
	return key
}
