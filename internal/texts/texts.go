// Package texts is the bot's message catalog: a nested JSON document keyed by
// dot-separated paths, with {name} placeholder substitution.
package texts

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed messages.json
var messagesFS embed.FS

type Catalog struct {
	messages map[string]any
}

// Load parses the embedded catalog. A broken catalog is a build defect, so
// errors surface at startup rather than per lookup.
func Load() (*Catalog, error) {
	b, err := messagesFS.ReadFile("messages.json")
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("texts: parse messages.json: %w", err)
	}
	return &Catalog{messages: m}, nil
}

// Get resolves a dot-separated key like "user.welcome". Unknown keys return
// the key itself so a missing text shows up in chat instead of crashing.
func (c *Catalog) Get(key string) string {
	var cur any = c.messages
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return key
		}
		cur, ok = m[part]
		if !ok {
			return key
		}
	}
	s, ok := cur.(string)
	if !ok {
		return key
	}
	return s
}

// Format resolves a key and substitutes {name} placeholders from args.
// Placeholders without a matching arg are left as-is.
func (c *Catalog) Format(key string, args map[string]any) string {
	s := c.Get(key)
	for name, v := range args {
		s = strings.ReplaceAll(s, "{"+name+"}", fmt.Sprint(v))
	}
	return s
}
