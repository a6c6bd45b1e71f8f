package gateway

import (
	"bytes"
	"sort"

	"github.com/goccy/go-json"

	"github.com/ehr/hms/pkg/resource"
)

// Body is a decoded list response. Keys holds the top-level object keys in
// document order and is empty when the body is not an object.
type Body struct {
	Value any
	Keys  []string
}

// ParseBody decodes raw with numbers kept as json.Number and records the
// order of the top-level keys.
func ParseBody(raw []byte) (Body, error) {
	v, err := decodeBody(raw)
	if err != nil {
		return Body{}, err
	}
	b := Body{Value: v}
	if _, ok := v.(map[string]any); ok {
		b.Keys = objectKeys(raw)
	}
	return b, nil
}

// objectKeys lists the keys of the top-level object in raw. raw has already
// been decoded successfully.
func objectKeys(raw []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var keys []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)
		if err := skipValue(dec); err != nil {
			return keys
		}
	}
}

func skipValue(dec *json.Decoder) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
		if depth == 0 {
			return nil
		}
	}
}

// ListExtractor tries to pull an entity array out of a decoded response
// body. It returns false to let the next extractor try.
type ListExtractor func(b Body) ([]any, bool)

// DefaultListChain is the order in which list envelopes are tried. The
// backend is not consistent across endpoints so every shape seen in the
// wild is accepted.
var DefaultListChain = []ListExtractor{
	BareArray,
	ArrayAt("data"),
	ArrayAt("content"),
	ArrayAt("items"),
	ArrayAt("dataList"),
	ArrayAt("data", "content"),
	ArrayAt("data", "dataList"),
	FirstArrayProperty,
}

// BareArray accepts a body that is itself an array.
func BareArray(b Body) ([]any, bool) {
	arr, ok := b.Value.([]any)
	return arr, ok
}

// ArrayAt accepts a body holding an array under the given key path.
func ArrayAt(path ...string) ListExtractor {
	return func(b Body) ([]any, bool) {
		cur := b.Value
		for _, key := range path {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			cur, ok = obj[key]
			if !ok {
				return nil, false
			}
		}
		arr, ok := cur.([]any)
		return arr, ok
	}
}

// FirstArrayProperty accepts the first top-level property holding an array,
// in document order. A Body built without Keys is visited in sorted key
// order.
func FirstArrayProperty(b Body) ([]any, bool) {
	obj, ok := b.Value.(map[string]any)
	if !ok {
		return nil, false
	}
	keys := b.Keys
	if len(keys) == 0 {
		keys = make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	for _, k := range keys {
		if arr, ok := obj[k].([]any); ok {
			return arr, true
		}
	}
	return nil, false
}

// ExtractList runs the chain over b and converts the winning array into
// entities. Elements that are not objects are dropped. The result is never
// nil.
func ExtractList(b Body, chain []ListExtractor) []resource.Entity {
	if len(chain) == 0 {
		chain = DefaultListChain
	}
	for _, extract := range chain {
		arr, ok := extract(b)
		if !ok {
			continue
		}
		out := make([]resource.Entity, 0, len(arr))
		for _, item := range arr {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, resource.Entity(obj))
			}
		}
		return out
	}
	return []resource.Entity{}
}

// ExtractOne prefers an object under "data" and falls back to the body
// itself.
func ExtractOne(body any) (resource.Entity, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, false
	}
	if inner, ok := obj["data"].(map[string]any); ok {
		return resource.Entity(inner), true
	}
	return resource.Entity(obj), true
}

// SuccessMarker stands in for an entity when the backend answers 204.
func SuccessMarker() resource.Entity {
	return resource.Entity{"success": true}
}
