package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ensureID assigns a fresh id when the caller left it empty so inserts work on
// databases without gen_random_uuid().
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// ensureJSON stores an empty object instead of NULL in json columns.
func ensureJSON(raw *json.RawMessage) {
	if len(*raw) == 0 {
		*raw = json.RawMessage("{}")
	}
}
