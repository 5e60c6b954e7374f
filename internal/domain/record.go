package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Column names written by enrichment
const (
	FieldProductName  = "Product name" // completion marker
	FieldCategoryID   = "ebay cat #"
	FieldCategoryPath = "ebay cat name"
)

// Record is one product row. Keys keep their first-insertion order and values may be null,
// which is how empty CSV cells are represented.
type Record struct {
	keys   []string
	values map[string]*string
}

// NewRecord creates an empty record
func NewRecord() *Record {
	return &Record{values: make(map[string]*string)}
}

// RecordFromMap builds a record from a map, adding keys in the given order first.
// Used mostly by tests and fixtures.
func RecordFromMap(order []string, m map[string]*string) *Record {
	r := NewRecord()
	for _, k := range order {
		r.Set(k, m[k])
	}
	for k, v := range m {
		if !r.Has(k) {
			r.Set(k, v)
		}
	}
	return r
}

// Set stores a nullable value, appending the key if it is new
func (r *Record) Set(key string, value *string) {
	if r.values == nil {
		r.values = make(map[string]*string)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	if value != nil {
		v := *value
		value = &v
	}
	r.values[key] = value
}

// SetString stores a non-null value
func (r *Record) SetString(key, value string) {
	r.Set(key, &value)
}

// SetNull stores a null value
func (r *Record) SetNull(key string) {
	r.Set(key, nil)
}

// Has reports whether the key exists, null or not
func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Raw returns the stored value, nil when the key is absent or null
func (r *Record) Raw(key string) *string {
	return r.values[key]
}

// Get returns the value when it is present, non-null and not blank
func (r *Record) Get(key string) (string, bool) {
	v := r.values[key]
	if v == nil || strings.TrimSpace(*v) == "" {
		return "", false
	}
	return *v, true
}

// Keys returns the record keys in insertion order
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of keys
func (r *Record) Len() int {
	return len(r.keys)
}

// IsComplete reports whether the completion marker is already filled. An empty
// cell or a null placeholder leaves it unfilled; any other text, spaces included,
// counts as filled.
func (r *Record) IsComplete() bool {
	v := r.values[FieldProductName]
	return v != nil && *v != "" && !IsNullPlaceholder(*v)
}

// nullPlaceholders are spreadsheet renderings of a missing value
var nullPlaceholders = map[string]bool{
	"nan":  true,
	"null": true,
	"none": true,
}

// IsNullPlaceholder reports whether s is a textual stand-in for a missing value
func IsNullPlaceholder(s string) bool {
	return nullPlaceholders[strings.ToLower(strings.TrimSpace(s))]
}

// Apply merges an enrichment patch into the record
func (r *Record) Apply(e Enrichment) {
	r.SetString(FieldProductName, e.ProductName)
	r.SetString(FieldCategoryID, e.CategoryID)
	r.SetString(FieldCategoryPath, e.CategoryPath)
}

// Clone returns a deep copy
func (r *Record) Clone() *Record {
	c := NewRecord()
	for _, k := range r.keys {
		c.Set(k, r.values[k])
	}
	return c
}

// MarshalJSON encodes the record as a flat object, keys in insertion order
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat object. Scalars other than strings are kept in their
// JSON text form (42 -> "42", true -> "true"); nested values are rejected.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: record must be a JSON object", ErrInvalidRequest)
	}

	*r = Record{values: make(map[string]*string)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: unexpected key token %v", ErrInvalidRequest, tok)
		}

		tok, err = dec.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case nil:
			r.SetNull(key)
		case string:
			r.SetString(key, v)
		case json.Number:
			r.SetString(key, v.String())
		case bool:
			r.SetString(key, fmt.Sprintf("%t", v))
		default:
			return fmt.Errorf("%w: field %q must be a scalar", ErrInvalidRequest, key)
		}
	}

	_, err = dec.Token()
	return err
}
