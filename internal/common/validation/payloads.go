// internal/common/validation/payloads.go
package validation

import "sync"

// RunRequestSchema describes {profile, options} as accepted by the
// run-creator-match job and the analyses endpoint.
const RunRequestSchema = `{
  "type": "object",
  "required": ["profile"],
  "properties": {
    "profile": {
      "type": "object",
      "required": ["primaryCategory", "location"],
      "properties": {
        "name":            {"type": "string", "maxLength": 200},
        "primaryCategory": {"type": "string", "minLength": 1, "maxLength": 100},
        "secondaryTags":   {"type": "array", "items": {"type": "string"}, "maxItems": 20},
        "location": {
          "type": "object",
          "properties": {
            "region":   {"type": "string"},
            "city":     {"type": "string"},
            "district": {"type": "string"},
            "lat":      {"type": "number", "minimum": -90, "maximum": 90},
            "lng":      {"type": "number", "minimum": -180, "maximum": 180},
            "radiusKm": {"type": "number", "minimum": 0}
          }
        },
        "priceTier":    {"type": "string", "enum": ["", "budget", "moderate", "premium", "luxury"]},
        "ageBands":     {"type": "array", "items": {"type": "string"}, "maxItems": 10},
        "interestTags": {"type": "array", "items": {"type": "string"}, "maxItems": 20},
        "keywords":     {"type": "array", "items": {"type": "string"}, "maxItems": 20}
      }
    },
    "options": {
      "type": "object",
      "properties": {
        "maxResults":   {"type": "integer", "minimum": 1, "maximum": 100},
        "minScore":     {"type": "integer", "minimum": 0, "maximum": 100},
        "forceRefresh": {"type": "boolean"}
      }
    }
  }
}`

// ProjectRequestSchema describes {payload, hints} for store-profile projection.
const ProjectRequestSchema = `{
  "type": "object",
  "required": ["payload"],
  "properties": {
    "payload": {
      "type": "object",
      "required": ["success", "data"],
      "properties": {
        "success": {"type": "boolean"},
        "data": {
          "type": "object",
          "required": ["basicInfo"],
          "properties": {
            "basicInfo": {"type": "object"},
            "menuItems": {"type": "array"},
            "reviews":   {"type": "array"}
          }
        }
      }
    },
    "hints": {
      "type": "object",
      "properties": {
        "ageBands":     {"type": "array", "items": {"type": "string"}},
        "interestTags": {"type": "array", "items": {"type": "string"}},
        "keywords":     {"type": "array", "items": {"type": "string"}},
        "radiusKm":     {"type": "number", "minimum": 0}
      }
    }
  }
}`

var (
	runOnce, projectOnce     sync.Once
	runSchema, projectSchema *Schema
)

// RunRequest returns the compiled RunRequestSchema.
func RunRequest() *Schema {
	runOnce.Do(func() {
		runSchema = mustCompile(RunRequestSchema)
	})
	return runSchema
}

// ProjectRequest returns the compiled ProjectRequestSchema.
func ProjectRequest() *Schema {
	projectOnce.Do(func() {
		projectSchema = mustCompile(ProjectRequestSchema)
	})
	return projectSchema
}

func mustCompile(schemaJSON string) *Schema {
	s, err := CompileJSON(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}
