package config

import (
	"errors"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema is the JSON schema a tutorial definition must satisfy before
// it is decoded. Template ids are qualified "module.name" identifiers.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["puzzles"],
  "properties": {
    "image": {"type": "string", "minLength": 1},
    "user": {"type": "string", "minLength": 1},
    "home": {"type": "string", "pattern": "^/"},
    "shell": {"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 1},
    "puzzles": {"type": "array", "items": {"$ref": "#/definitions/puzzleNode"}, "minItems": 1},
    "name_dictionary": {"type": "string", "minLength": 1},
    "content_sources": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "resources": {"type": "object", "additionalProperties": {"type": "string", "minLength": 1}},
    "setup_scripts": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "undo": {"type": "boolean"},
    "transcript": {"type": "string", "minLength": 1}
  },
  "definitions": {
    "templateId": {"type": "string", "pattern": "^[^.\\s]+\\.[^\\s]+$"},
    "puzzleNode": {
      "oneOf": [
        {"$ref": "#/definitions/templateId"},
        {
          "type": "object",
          "additionalProperties": false,
          "required": ["template"],
          "properties": {
            "template": {"$ref": "#/definitions/templateId"},
            "children": {"type": "array", "items": {"$ref": "#/definitions/puzzleNode"}}
          }
        }
      ]
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(configSchema)

// validateSchema checks raw config bytes against the schema and flattens the
// violations into one message.
func validateSchema(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return err
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return nil
}
