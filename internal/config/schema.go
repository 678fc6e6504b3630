package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is the JSON schema for seqkit.json. It rejects unknown keys so that
// a misspelled section does not silently fall back to defaults.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "data_dir": {"type": "string"},
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"type": "string", "enum": ["trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"]},
        "file": {"type": "string"},
        "console": {"type": "boolean"},
        "pretty": {"type": "boolean"},
        "max_size": {"type": "integer", "minimum": 0},
        "max_age": {"type": "integer", "minimum": 0},
        "compress": {"type": "boolean"},
        "redaction": {"type": "boolean"}
      }
    },
    "metrics": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "addr": {"type": "string"}
      }
    },
    "tracing": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "service_name": {"type": "string"},
        "sample_ratio": {"type": "number", "minimum": 0, "maximum": 1}
      }
    },
    "sequencer": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "capacity": {"type": "integer", "minimum": 0},
        "wait_warning_ms": {"type": "integer", "minimum": 0},
        "cancel_in_flight": {"type": "boolean"},
        "idle_sweep_ms": {"type": "integer", "minimum": 0}
      }
    },
    "scenario": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "work_ms": {"type": "integer", "minimum": 0},
        "operations": {"type": "integer", "minimum": 1},
        "sequencers": {"type": "integer", "minimum": 1}
      }
    },
    "schedule": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "jobs": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["key", "spec"],
            "additionalProperties": false,
            "properties": {
              "key": {"type": "string", "minLength": 1},
              "spec": {"type": "string", "minLength": 1},
              "work_ms": {"type": "integer", "minimum": 0}
            }
          }
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(Schema)

// ValidateSchema checks raw config file contents against Schema
func ValidateSchema(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}

	return nil
}
