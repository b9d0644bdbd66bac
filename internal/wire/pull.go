package wire

import (
	"encoding/json"
	"fmt"
)

// PullResponse carries everything that changed on the server since the
// requested watermark: one array per entity kind, the tombstone list, and a
// fresh server timestamp (milliseconds) the client commits as its new cursor.
type PullResponse struct {
	Timestamp int64
	Records   map[Kind][]Record
	Deleted   []Tombstone
}

// Total counts the records in the response, tombstones excluded.
func (r *PullResponse) Total() int {
	n := 0
	for _, recs := range r.Records {
		n += len(recs)
	}
	return n
}

// MarshalJSON flattens the per-kind arrays next to "timestamp" and
// "deleted", matching the legacy backend's response shape.
func (r PullResponse) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(Kinds)+2)
	out["timestamp"] = r.Timestamp
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

// UnmarshalJSON tolerates absent kind arrays; only "timestamp" is required.
func (r *PullResponse) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	raw, ok := obj["timestamp"]
	if !ok {
		return fmt.Errorf("pull response: missing timestamp")
	}
	if err := json.Unmarshal(raw, &r.Timestamp); err != nil {
		return fmt.Errorf("pull response timestamp: %w", err)
	}

	r.Records = make(map[Kind][]Record)
	for _, kind := range Kinds {
		raw, ok := obj[string(kind)]
		if !ok || string(raw) == "null" {
			continue
		}
		var recs []Record
		if err := json.Unmarshal(raw, &recs); err != nil {
			return fmt.Errorf("pull response %s: %w", kind, err)
		}
		if len(recs) > 0 {
			r.Records[kind] = recs
		}
	}

	if raw, ok := obj["deleted"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &r.Deleted); err != nil {
			return fmt.Errorf("pull response deleted: %w", err)
		}
	}
	return nil
}
