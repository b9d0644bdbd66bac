package wire

import (
	"encoding/json"
	"fmt"
)

// Record is the whole-record envelope every entity kind travels in. The sync
// metadata fields are typed; all domain fields (name, address, measured
// values, ...) stay in Fields untouched, so the engine never needs to know
// the per-kind schemas. Merges are whole-record: a record either replaces
// the local row or it does not.
type Record struct {
	ID              string
	CreatedAtEpoch  int64
	UpdatedAtEpoch  int64
	IsArchived      bool
	ArchivedAtEpoch *int64
	Origin          string
	Fields          map[string]json.RawMessage
}

// Field returns the raw domain field under key, or nil.
func (r *Record) Field(key string) json.RawMessage {
	return r.Fields[key]
}

// StringField decodes the domain field under key as a string; missing or
// non-string fields yield "".
func (r *Record) StringField(key string) string {
	raw, ok := r.Fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// SetField stores v as the domain field under key.
func (r *Record) SetField(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if r.Fields == nil {
		r.Fields = make(map[string]json.RawMessage)
	}
	r.Fields[key] = raw
	return nil
}

// MarshalJSON flattens the envelope: sync meta keys and domain fields end up
// as siblings in one JSON object, matching the legacy backend.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Fields)+6)
	for k, v := range r.Fields {
		out[k] = v
	}
	put := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[key] = raw
		return nil
	}
	if err := put("id", r.ID); err != nil {
		return nil, err
	}
	if err := put("createdAtEpoch", r.CreatedAtEpoch); err != nil {
		return nil, err
	}
	if err := put("updatedAtEpoch", r.UpdatedAtEpoch); err != nil {
		return nil, err
	}
	if err := put("isArchived", r.IsArchived); err != nil {
		return nil, err
	}
	if r.ArchivedAtEpoch != nil {
		if err := put("archivedAtEpoch", *r.ArchivedAtEpoch); err != nil {
			return nil, err
		}
	}
	if r.Origin != "" {
		if err := put("origin", r.Origin); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON pops the sync meta keys out of the object and leaves the
// rest in Fields. The legacy backend serializes booleans as 0/1, so
// isArchived is decoded leniently.
func (r *Record) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	pop := func(key string) (json.RawMessage, bool) {
		raw, ok := obj[key]
		if ok {
			delete(obj, key)
		}
		return raw, ok
	}

	if raw, ok := pop("id"); ok {
		if err := json.Unmarshal(raw, &r.ID); err != nil {
			return fmt.Errorf("record id: %w", err)
		}
	}
	if raw, ok := pop("createdAtEpoch"); ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &r.CreatedAtEpoch); err != nil {
			return fmt.Errorf("record createdAtEpoch: %w", err)
		}
	}
	if raw, ok := pop("updatedAtEpoch"); ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &r.UpdatedAtEpoch); err != nil {
			return fmt.Errorf("record updatedAtEpoch: %w", err)
		}
	}
	if raw, ok := pop("isArchived"); ok {
		b, err := lenientBool(raw)
		if err != nil {
			return fmt.Errorf("record isArchived: %w", err)
		}
		r.IsArchived = b
	}
	if raw, ok := pop("archivedAtEpoch"); ok && string(raw) != "null" {
		var v int64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("record archivedAtEpoch: %w", err)
		}
		r.ArchivedAtEpoch = &v
	}
	if raw, ok := pop("origin"); ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &r.Origin); err != nil {
			return fmt.Errorf("record origin: %w", err)
		}
	}

	r.Fields = obj
	return nil
}

// lenientBool accepts true/false, 0/1 and "0"/"1".
func lenientBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s == "1" || s == "true", nil
	}
	return false, fmt.Errorf("cannot decode %q as bool", string(raw))
}
