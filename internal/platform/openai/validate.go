package openai

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

var schemaCache sync.Map // map[string]*jsonschema.Schema

// decodeAndValidate parses raw into an object and checks it against schema.
func decodeAndValidate(schemaName string, schema map[string]any, raw string) (map[string]any, error) {
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if schema != nil {
		compiled, err := compiledSchema(schemaName, schema)
		if err != nil {
			return nil, &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("compile schema %q: %w", schemaName, err)}
		}
		if err := compiled.Validate(parsed); err != nil {
			return nil, &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("schema validation failed: %w", err)}
		}
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("expected JSON object")}
	}
	return obj, nil
}

func compiledSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(name); ok {
		return cached.(*jsonschema.Schema), nil
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var def any
	if err := json.Unmarshal(b, &def); err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", name)
	if err := c.AddResource(url, def); err != nil {
		return nil, err
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(name, compiled)
	return compiled, nil
}
