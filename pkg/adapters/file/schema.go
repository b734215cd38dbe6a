package file

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed page.schema.json
var pageSchemaSource string

var (
	pageSchemaOnce sync.Once
	pageSchema     *jsonschema.Schema
	pageSchemaErr  error
)

// PageSchema returns the JSON schema page documents are validated against.
func PageSchema() string {
	return pageSchemaSource
}

// ValidateDocument checks a decoded page document (maps, slices and
// scalars, as produced by encoding/json or yaml.v3) against the page schema.
func ValidateDocument(doc any) error {
	pageSchemaOnce.Do(func() {
		pageSchema, pageSchemaErr = jsonschema.CompileString("page.schema.json", pageSchemaSource)
	})
	if pageSchemaErr != nil {
		return fmt.Errorf("failed to compile page schema: %w", pageSchemaErr)
	}
	if err := pageSchema.Validate(doc); err != nil {
		return fmt.Errorf("invalid page document: %w", err)
	}
	return nil
}
