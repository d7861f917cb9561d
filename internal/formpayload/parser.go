// Package formpayload decodes the semi-structured form payloads attached to
// form events. The collector emits these either as JSON or as Python-style
// dict literals (single-quoted), so decoding tolerates both.
package formpayload

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/spaolacci/murmur3"

	"github.com/tributary-data/tributary/internal/errors"
)

// Element is one input element of a submitted HTML form.
type Element struct {
	Name     string
	NodeName string
	Value    *string
	Type     *string
}

// Payload is the decoded form-submission payload: the HTML form's identity,
// classes and input elements.
type Payload struct {
	FormID      string
	FormClasses []string
	Elements    []Element
}

// Raw is a decoded-but-not-yet-validated payload cell as produced by the
// type-coercion step: the original string plus its dict representation.
// Validation into a Payload happens lazily during classification.
type Raw struct {
	Source string
	Data   map[string]interface{}
}

// Decode parses a raw payload string into a dict. It accepts strict JSON
// first and falls back to Python-literal syntax. A nil map with no error is
// never returned; malformed input yields a DECODE error.
func Decode(raw string) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out, nil
	}

	converted, err := pythonLiteralToJSON(raw)
	if err != nil {
		return nil, errors.NewDecodeError("payload is neither JSON nor a dict literal", err)
	}
	if err := json.Unmarshal([]byte(converted), &out); err != nil {
		return nil, errors.NewDecodeError("payload is neither JSON nor a dict literal", err)
	}
	return out, nil
}

// FromDict builds a Payload from a decoded dict. Elements may be keyed
// objects ({"name": ..., "nodeName": ...}) or positional lists following
// the element field order (name, nodeName, value, type).
func FromDict(data map[string]interface{}) (*Payload, error) {
	formID, ok := data["formId"].(string)
	if !ok {
		return nil, errors.NewDecodeError("payload missing formId", nil)
	}

	classesRaw, ok := data["formClasses"].([]interface{})
	if !ok {
		return nil, errors.NewDecodeError("payload missing formClasses", nil)
	}
	classes := make([]string, 0, len(classesRaw))
	for _, c := range classesRaw {
		s, ok := c.(string)
		if !ok {
			return nil, errors.NewDecodeError("formClasses entry is not a string", nil)
		}
		classes = append(classes, s)
	}

	elementsRaw, ok := data["elements"].([]interface{})
	if !ok {
		return nil, errors.NewDecodeError("payload missing elements", nil)
	}
	elements := make([]Element, 0, len(elementsRaw))
	for i, e := range elementsRaw {
		el, err := decodeElement(e)
		if err != nil {
			return nil, errors.NewDecodeError(fmt.Sprintf("element %d is malformed", i), err)
		}
		elements = append(elements, el)
	}

	return &Payload{FormID: formID, FormClasses: classes, Elements: elements}, nil
}

func decodeElement(e interface{}) (Element, error) {
	switch v := e.(type) {
	case map[string]interface{}:
		name, ok := v["name"].(string)
		if !ok {
			return Element{}, fmt.Errorf("missing name")
		}
		nodeName, ok := v["nodeName"].(string)
		if !ok {
			return Element{}, fmt.Errorf("missing nodeName")
		}
		return Element{
			Name:     name,
			NodeName: nodeName,
			Value:    optString(v["value"]),
			Type:     optString(v["type"]),
		}, nil
	case []interface{}:
		// Positional shape: name, nodeName, then optional value and type.
		if len(v) < 2 {
			return Element{}, fmt.Errorf("positional element has %d fields, want >= 2", len(v))
		}
		name, ok := v[0].(string)
		if !ok {
			return Element{}, fmt.Errorf("positional name is not a string")
		}
		nodeName, ok := v[1].(string)
		if !ok {
			return Element{}, fmt.Errorf("positional nodeName is not a string")
		}
		el := Element{Name: name, NodeName: nodeName}
		if len(v) > 2 {
			el.Value = optString(v[2])
		}
		if len(v) > 3 {
			el.Type = optString(v[3])
		}
		return el, nil
	default:
		return Element{}, fmt.Errorf("element is neither object nor list")
	}
}

func optString(v interface{}) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

// cacheKey is the murmur3-128 digest of a raw payload string. Hashing keeps
// the cache's key footprint bounded even when payloads are large.
type cacheKey struct {
	h1, h2 uint64
}

func keyOf(raw string) cacheKey {
	h1, h2 := murmur3.Sum128([]byte(raw))
	return cacheKey{h1: h1, h2: h2}
}

// Parser validates raw payload cells into Payload structures, memoizing by
// payload identity. Parsing is a pure function of the raw string, so the
// cache is append-only for the process lifetime. The mutex keeps it safe if
// classification is ever parallelized across rows.
type Parser struct {
	mu    sync.Mutex
	cache map[cacheKey]*Payload
	hits  int64
}

// NewParser creates a Parser with an empty cache.
func NewParser() *Parser {
	return &Parser{cache: make(map[cacheKey]*Payload)}
}

// Parse returns the validated Payload for a raw cell, consulting the memo
// cache first. Decode failures are not cached; the same malformed payload
// fails identically on every call.
func (p *Parser) Parse(raw *Raw) (*Payload, error) {
	if raw == nil {
		return nil, errors.NewDecodeError("nil payload", nil)
	}

	key := keyOf(raw.Source)
	p.mu.Lock()
	if cached, ok := p.cache[key]; ok {
		p.hits++
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	data := raw.Data
	if data == nil {
		var err error
		data, err = Decode(raw.Source)
		if err != nil {
			return nil, err
		}
	}
	payload, err := FromDict(data)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[key] = payload
	p.mu.Unlock()
	return payload, nil
}

// CacheSize returns the number of distinct payloads parsed so far.
func (p *Parser) CacheSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

// CacheHits returns how many Parse calls were served from the cache.
func (p *Parser) CacheHits() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits
}

// pythonLiteralToJSON rewrites a Python dict literal into JSON: single-quoted
// strings become double-quoted, True/False/None become true/false/null.
// Escapes inside strings are preserved; embedded double quotes are escaped.
func pythonLiteralToJSON(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	runes := []rune(s)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch c {
		case '\'', '"':
			quote := c
			b.WriteByte('"')
			i++
			for i < len(runes) {
				r := runes[i]
				if r == '\\' && i+1 < len(runes) {
					next := runes[i+1]
					if next == '\'' {
						// \' inside a Python string is just an apostrophe.
						b.WriteRune('\'')
					} else {
						b.WriteRune('\\')
						b.WriteRune(next)
					}
					i += 2
					continue
				}
				if r == quote {
					break
				}
				if r == '"' && quote == '\'' {
					b.WriteString(`\"`)
					i++
					continue
				}
				b.WriteRune(r)
				i++
			}
			if i >= len(runes) {
				return "", fmt.Errorf("unterminated string literal")
			}
			b.WriteByte('"')
			i++
		default:
			if word, n := matchWord(runes[i:]); n > 0 {
				b.WriteString(word)
				i += n
				continue
			}
			b.WriteRune(c)
			i++
		}
	}
	return b.String(), nil
}

// matchWord translates the Python constants True/False/None at the start of
// rs, returning the JSON form and the number of runes consumed.
func matchWord(rs []rune) (string, int) {
	for py, js := range map[string]string{"True": "true", "False": "false", "None": "null"} {
		if hasWordPrefix(rs, py) {
			return js, len(py)
		}
	}
	return "", 0
}

func hasWordPrefix(rs []rune, word string) bool {
	if len(rs) < len(word) {
		return false
	}
	for i, w := range word {
		if rs[i] != w {
			return false
		}
	}
	// Must not be part of a longer identifier.
	if len(rs) > len(word) {
		next := rs[len(word)]
		if next == '_' || (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') || (next >= '0' && next <= '9') {
			return false
		}
	}
	return true
}
