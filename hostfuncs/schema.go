package hostfuncs

import (
	"github.com/invopop/jsonschema"
)

// FuncSchema holds the JSON Schemas of one host function's payloads.
type FuncSchema struct {
	Request  *jsonschema.Schema `json:"request,omitempty"`
	Response *jsonschema.Schema `json:"response,omitempty"`
}

// GenerateSchema reflects v into a JSON Schema (Draft 2020-12).
// It returns nil for a nil value.
func GenerateSchema(v any) *jsonschema.Schema {
	if v == nil {
		return nil
	}
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	return reflector.Reflect(v)
}

// Schemas returns the payload schemas of every typed function, keyed by name.
func (r *HandlerRegistry) Schemas() map[string]FuncSchema {
	out := make(map[string]FuncSchema, len(r.entries))
	for _, name := range r.names {
		entry := r.entries[name]
		if entry.Request == nil && entry.Response == nil {
			continue
		}
		out[name] = FuncSchema{
			Request:  GenerateSchema(entry.Request),
			Response: GenerateSchema(entry.Response),
		}
	}
	return out
}

// CallbackSchema is the schema of the payload delivered to script callbacks.
func CallbackSchema() *jsonschema.Schema {
	return GenerateSchema(HTTPCallback{})
}
