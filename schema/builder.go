package schema

// Object creates an object schema. Names passed after the properties are required.
//
//	schema.Object(map[string]*schema.Property{
//	    "query": schema.String("Search query"),
//	    "limit": schema.Integer("Max results").Min(1).Default(10),
//	}, "query")
func Object(properties map[string]*Property, required ...string) map[string]any {
	props := make(map[string]any, len(properties))
	for name, prop := range properties {
		props[name] = prop.build()
	}

	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// Strict is Object with additionalProperties disabled, so unknown keys are rejected.
func Strict(properties map[string]*Property, required ...string) map[string]any {
	out := Object(properties, required...)
	out["additionalProperties"] = false
	return out
}

// Property is a single property in an object schema. Setters return the receiver so
// calls chain.
type Property struct {
	typ         string
	description string
	enum        []any
	format      string
	minimum     *float64
	maximum     *float64
	minLength   *int
	maxLength   *int
	minItems    *int
	pattern     string
	items       map[string]any
	object      map[string]any
	def         any
}

func (p *Property) build() map[string]any {
	m := map[string]any{}
	for k, v := range p.object {
		m[k] = v
	}

	if p.typ != "" {
		m["type"] = p.typ
	}
	if p.description != "" {
		m["description"] = p.description
	}
	if len(p.enum) > 0 {
		m["enum"] = p.enum
	}
	if p.format != "" {
		m["format"] = p.format
	}
	if p.minimum != nil {
		m["minimum"] = *p.minimum
	}
	if p.maximum != nil {
		m["maximum"] = *p.maximum
	}
	if p.minLength != nil {
		m["minLength"] = *p.minLength
	}
	if p.maxLength != nil {
		m["maxLength"] = *p.maxLength
	}
	if p.minItems != nil {
		m["minItems"] = *p.minItems
	}
	if p.pattern != "" {
		m["pattern"] = p.pattern
	}
	if p.items != nil {
		m["items"] = p.items
	}
	if p.def != nil {
		m["default"] = p.def
	}
	return m
}

// String creates a string property.
func String(description string) *Property {
	return &Property{typ: "string", description: description}
}

// Integer creates an integer property.
func Integer(description string) *Property {
	return &Property{typ: "integer", description: description}
}

// Number creates a floating point property.
func Number(description string) *Property {
	return &Property{typ: "number", description: description}
}

// Boolean creates a boolean property.
func Boolean(description string) *Property {
	return &Property{typ: "boolean", description: description}
}

// Array creates an array property whose elements match items.
//
//	schema.Array("Tags", map[string]any{"type": "string"}).MinItems(1)
func Array(description string, items map[string]any) *Property {
	return &Property{typ: "array", description: description, items: items}
}

// Nested creates a property holding an object built with Object or Strict.
func Nested(description string, object map[string]any) *Property {
	return &Property{description: description, object: object}
}

// Enum restricts the property to the given values.
func (p *Property) Enum(values ...any) *Property {
	p.enum = values
	return p
}

// Format sets a string format such as "email", "date-time" or "uuid".
//
// Formats are annotations unless the compiler asserts them; Compile leaves the
// library default in place.
func (p *Property) Format(format string) *Property {
	p.format = format
	return p
}

// Min sets the minimum for number and integer properties.
func (p *Property) Min(min float64) *Property {
	p.minimum = &min
	return p
}

// Max sets the maximum for number and integer properties.
func (p *Property) Max(max float64) *Property {
	p.maximum = &max
	return p
}

// MinLength sets the minimum length of a string property.
func (p *Property) MinLength(min int) *Property {
	p.minLength = &min
	return p
}

// MaxLength sets the maximum length of a string property.
func (p *Property) MaxLength(max int) *Property {
	p.maxLength = &max
	return p
}

// MinItems sets the minimum number of elements in an array property.
func (p *Property) MinItems(min int) *Property {
	p.minItems = &min
	return p
}

// Pattern sets a regular expression a string property must match.
func (p *Property) Pattern(pattern string) *Property {
	p.pattern = pattern
	return p
}

// Default records a default value. Validation does not apply it.
func (p *Property) Default(value any) *Property {
	p.def = value
	return p
}
