package wire

import (
	"encoding/json"
	"fmt"
)

// Tombstone is a durable deletion-intent record: it outlives the deleted row
// and is how deletions propagate in both directions.
type Tombstone struct {
	Entity         Kind
	RecordID       string
	DeletedAtEpoch int64
}

// MarshalJSON emits the modern field names.
func (t Tombstone) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Entity         Kind   `json:"entity"`
		RecordID       string `json:"id"`
		DeletedAtEpoch int64  `json:"deletedAtEpoch"`
	}{t.Entity, t.RecordID, t.DeletedAtEpoch})
}

// UnmarshalJSON accepts both field-name generations: the entity name may
// arrive as "entity" or the legacy "tableName", and the record id as "id" or
// "recordId".
func (t *Tombstone) UnmarshalJSON(data []byte) error {
	var obj struct {
		Entity         Kind   `json:"entity"`
		TableName      Kind   `json:"tableName"`
		ID             string `json:"id"`
		RecordID       string `json:"recordId"`
		DeletedAtEpoch int64  `json:"deletedAtEpoch"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("tombstone: %w", err)
	}

	t.Entity = obj.Entity
	if t.Entity == "" {
		t.Entity = obj.TableName
	}
	t.RecordID = obj.ID
	if t.RecordID == "" {
		t.RecordID = obj.RecordID
	}
	t.DeletedAtEpoch = obj.DeletedAtEpoch
	return nil
}
