package handlers

import "github.com/xeipuuv/gojsonschema"

const UpdateVideoRequestSchemaDefinition = `{
	"type": "object",
	"properties": {
		"title": { "type": "string", "minLength": 1, "maxLength": 256 },
		"description": { "type": "string", "maxLength": 5000 },
		"visibility": { "type": "string", "enum": ["PUBLIC", "UNLISTED", "PRIVATE"] }
	},
	"additionalProperties": false
}`

var inputSchemas = map[string]string{
	"UpdateVideo": UpdateVideoRequestSchemaDefinition,
}

func compileJsonSchemas() map[string]*gojsonschema.Schema {
	compiled := make(map[string]*gojsonschema.Schema, len(inputSchemas))
	for name, text := range inputSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
		if err != nil {
			// broken schema text, fail on start
			panic(err)
		}
		compiled[name] = schema
	}
	return compiled
}

var inputSchemasCompiled = compileJsonSchemas()
