package providers

// Generation option keys recognized by Request callers building a
// provider-agnostic options map before translation into a vendor's native
// request shape.
const (
	OptMaxTokens     = "max_tokens"
	OptTemperature   = "temperature"
	OptThinkingLevel = "thinking_level"
)

// CleanSchemaForProvider strips JSON Schema keywords that some vendor
// function-calling APIs reject outright (e.g. Anthropic and OpenAI both
// disallow "$schema" and most reject "examples"/"default" on tool
// parameters). The input is not mutated.
func CleanSchemaForProvider(schema map[string]any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		switch k {
		case "$schema", "$id", "examples", "default", "title":
			continue
		case "properties":
			if props, ok := v.(map[string]any); ok {
				out[k] = cleanProperties(props)
				continue
			}
		}
		out[k] = v
	}
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	return out
}

func cleanProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for name, raw := range props {
		prop, ok := raw.(map[string]any)
		if !ok {
			out[name] = raw
			continue
		}
		cleaned := make(map[string]any, len(prop))
		for k, v := range prop {
			switch k {
			case "$schema", "$id", "examples", "default", "title":
				continue
			case "properties":
				if nested, ok := v.(map[string]any); ok {
					cleaned[k] = cleanProperties(nested)
					continue
				}
			}
			cleaned[k] = v
		}
		out[name] = cleaned
	}
	return out
}
