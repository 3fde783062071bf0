package provider

import (
	"encoding/json"
	"sort"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects T into a JSON schema accepted by OpenAI strict structured outputs:
// every object closes additionalProperties and lists all of its properties as required.
func GenerateSchema[T any]() map[string]any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	b, err := json.Marshal(r.Reflect(v))
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	delete(m, "$schema")
	delete(m, "$id")
	strictify(m)
	return m
}

// SchemaText renders a schema for inclusion in a prompt.
func SchemaText(schema map[string]any) string {
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func strictify(node map[string]any) {
	props, _ := node["properties"].(map[string]any)
	if t, _ := node["type"].(string); t == "object" {
		node["additionalProperties"] = false
		if len(props) > 0 {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			sort.Strings(required)
			node["required"] = required
		}
	}
	for _, p := range props {
		if child, ok := p.(map[string]any); ok {
			strictify(child)
		}
	}
	if items, ok := node["items"].(map[string]any); ok {
		strictify(items)
	}
}
