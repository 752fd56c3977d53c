package tools

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/promptfill/promptfill/internal/core/template"
)

var (
	objectType  = reflect.TypeOf(template.Object{})
	varTypeType = reflect.TypeOf(template.VarType(""))
)

// schemaMapper covers types whose JSON shape is not their Go shape.
func schemaMapper(t reflect.Type) *jsonschema.Schema {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case objectType:
		return &jsonschema.Schema{Type: "object", AdditionalProperties: jsonschema.TrueSchema}
	case varTypeType:
		return &jsonschema.Schema{
			Type: "string",
			Enum: []any{
				string(template.TypeString),
				string(template.TypeText),
				string(template.TypeNumber),
				string(template.TypeBoolean),
				string(template.TypeEnum),
			},
		}
	}
	return nil
}

// inputSchema reflects the JSON schema of an input struct with every
// definition inlined.
func inputSchema[T any]() (json.RawMessage, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
		Mapper:                     schemaMapper,
	}

	schema := reflector.Reflect(new(T))
	schema.Version = ""
	schema.ID = ""

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal input schema: %w", err)
	}
	return data, nil
}
