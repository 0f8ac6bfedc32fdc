package llm

import (
	"reflect"

	"github.com/invopop/jsonschema"
)

// GenerateSchema describes the decoded shape of value for structured-output
// requests. Nested structs are inlined and unknown keys are rejected, so both
// backends receive one self-contained document.
func GenerateSchema(value any) *jsonschema.Schema {
	t := reflect.TypeOf(value)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r := &jsonschema.Reflector{DoNotReference: true}
	return r.ReflectFromType(t)
}
