package model

import (
	"sync"

	"github.com/invopop/jsonschema"
)

// DataModel groups the entities exchanged with a remote store, for schema
// generation.
type DataModel struct {
	Workspace   Workspace   `json:"workspace"`
	Page        Page        `json:"page"`
	PageInput   PageInput   `json:"page_input"`
	PageUpdate  PageUpdate  `json:"page_update"`
	Block       Block       `json:"block"`
	FlatBlock   FlatBlock   `json:"flat_block"`
	BlockUpdate BlockUpdate `json:"block_update"`
	DatabaseRow DatabaseRow `json:"database_row"`
}

// JSONSchema returns the JSON schema of DataModel. Recursive types such as
// Block are emitted as references in $defs.
var JSONSchema = sync.OnceValue(func() *jsonschema.Schema {
	r := jsonschema.Reflector{Anonymous: true, AllowAdditionalProperties: true}
	return r.Reflect(&DataModel{})
})
