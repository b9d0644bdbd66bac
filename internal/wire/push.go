package wire

import "encoding/json"

// PushRequest carries every dirty record, one array per entity kind, plus
// the accumulated tombstones.
type PushRequest struct {
	Records map[Kind][]Record
	Deleted []Tombstone
}

// Total counts the records and tombstones in the request.
func (r *PushRequest) Total() int {
	n := len(r.Deleted)
	for _, recs := range r.Records {
		n += len(recs)
	}
	return n
}

// Add appends rec under kind.
func (r *PushRequest) Add(kind Kind, rec Record) {
	if r.Records == nil {
		r.Records = make(map[Kind][]Record)
	}
	r.Records[kind] = append(r.Records[kind], rec)
}

// MarshalJSON emits one array field per entity kind plus "deleted". Kinds
// with no dirty records are emitted as empty arrays, matching what the
// legacy backend expects.
func (r PushRequest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(Kinds)+1)
	for _, kind := range Kinds {
		recs := r.Records[kind]
		if recs == nil {
			recs = []Record{}
		}
		out[string(kind)] = recs
	}
	if r.Deleted == nil {
		out["deleted"] = []Tombstone{}
	} else {
		out["deleted"] = r.Deleted
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the server-side inverse of MarshalJSON.
func (r *PushRequest) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	r.Records = make(map[Kind][]Record)
	for _, kind := range Kinds {
		raw, ok := obj[string(kind)]
		if !ok || string(raw) == "null" {
			continue
		}
		var recs []Record
		if err := json.Unmarshal(raw, &recs); err != nil {
			return err
		}
		if len(recs) > 0 {
			r.Records[kind] = recs
		}
	}
	if raw, ok := obj["deleted"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &r.Deleted); err != nil {
			return err
		}
	}
	return nil
}

// KindResult reports, per entity kind, which pushed ids the server inserted,
// updated, or refused (stale version, validation failure).
type KindResult struct {
	Inserted []string `json:"inserted"`
	Updated  []string `json:"updated"`
	Skipped  []string `json:"skipped"`
}

// PushError describes a per-record rejection. It never aborts the push.
type PushError struct {
	EntityType Kind   `json:"entityType"`
	EntityID   string `json:"entityId"`
	Message    string `json:"message"`
}

// PushResponse is the server's verdict on a push.
type PushResponse struct {
	Success bool                `json:"success"`
	Result  map[Kind]KindResult `json:"result"`
	Errors  []PushError         `json:"errors,omitempty"`
}
