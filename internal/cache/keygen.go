package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Options that never change the upstream answer. They are stripped before
// hashing so that toggling them cannot cause a spurious miss.
var nonSemanticOptions = map[string]struct{}{
	"stream":  {},
	"async":   {},
	"timeout": {},
}

// KeyGenerator derives deterministic cache keys from request parameters.
// Identical requests produce identical keys regardless of option insertion
// order.
type KeyGenerator struct {
	// Prefix is prepended to all generated keys.
	Prefix string
}

// NewKeyGenerator creates a KeyGenerator with an optional prefix.
func NewKeyGenerator(prefix string) *KeyGenerator {
	return &KeyGenerator{Prefix: prefix}
}

// Generate builds a key of the form
// [prefix:][namespace:]provider:model:sha256(prompt|sortedOptions).
// Provider and model namespace the hash so entries can be bulk-evicted per
// provider/model without scanning.
func (g *KeyGenerator) Generate(namespace, provider, model, prompt string, options map[string]any) string {
	var sb strings.Builder
	sb.WriteString("prompt:")
	sb.WriteString(prompt)

	for _, k := range normalizedOptionKeys(options) {
		v, err := json.Marshal(options[k])
		if err != nil {
			// Unmarshalable values still participate deterministically.
			v = []byte("?")
		}
		sb.WriteString("|")
		sb.WriteString(k)
		sb.WriteString(":")
		sb.Write(v)
	}

	sum := sha256.Sum256([]byte(sb.String()))
	digest := hex.EncodeToString(sum[:])

	var key strings.Builder
	if g.Prefix != "" {
		key.WriteString(g.Prefix)
		key.WriteString(":")
	}
	if namespace != "" {
		key.WriteString(namespace)
		key.WriteString(":")
	}
	key.WriteString(provider)
	key.WriteString(":")
	key.WriteString(model)
	key.WriteString(":")
	key.WriteString(digest)
	return key.String()
}

// normalizedOptionKeys returns the semantic option keys in sorted order.
func normalizedOptionKeys(options map[string]any) []string {
	keys := make([]string, 0, len(options))
	for k := range options {
		if _, skip := nonSemanticOptions[k]; skip {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
