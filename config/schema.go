package config

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema is the JSON Schema the loader checks config documents against
// when validation is enabled. It rejects unknown top-level sections and type
// mismatches before the document is merged, so a typo like "dispacher" fails
// loudly instead of being silently ignored.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "cmdtree configuration",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "service": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "name": {"type": "string"},
        "instance_id": {"type": "string"},
        "environment": {"type": "string", "enum": ["prod", "dev", "test"]}
      }
    },
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "format": {"type": "string", "enum": ["json", "text"]}
      }
    },
    "security": {
      "type": "object",
      "properties": {
        "tls": {"type": "object"}
      }
    },
    "nats": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "urls": {"type": "array", "items": {"type": "string"}},
        "max_reconnects": {"type": "integer"},
        "reconnect_wait": {"type": ["integer", "string"]},
        "username": {"type": "string"},
        "password": {"type": "string"},
        "token": {"type": "string"},
        "tls": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "enabled": {"type": "boolean"},
            "cert_file": {"type": "string"},
            "key_file": {"type": "string"},
            "ca_file": {"type": "string"}
          }
        }
      }
    },
    "sources": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "nats": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "enabled": {"type": "boolean"},
            "subject": {"type": "string"},
            "queue": {"type": "string"}
          }
        },
        "websocket": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "enabled": {"type": "boolean"},
            "address": {"type": "string"},
            "path": {"type": "string"},
            "read_limit": {"type": "integer"},
            "ping_interval": {"type": ["integer", "string"]},
            "pong_wait": {"type": ["integer", "string"]},
            "write_wait": {"type": ["integer", "string"]},
            "auth": {
              "type": "object",
              "additionalProperties": false,
              "properties": {
                "type": {"type": "string", "enum": ["none", "bearer", "basic"]},
                "bearer_token_env": {"type": "string"},
                "basic_username_env": {"type": "string"},
                "basic_password_env": {"type": "string"}
              }
            }
          }
        }
      }
    },
    "dispatcher": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "workers": {"type": "integer", "minimum": 0},
        "queue_size": {"type": "integer", "minimum": 0},
        "exec_timeout": {"type": ["integer", "string"]},
        "rate_limit": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "enabled": {"type": "boolean"},
            "rate": {"type": "number"},
            "burst": {"type": "integer"}
          }
        }
      }
    },
    "metrics": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "port": {"type": "integer", "minimum": 1, "maximum": 65535},
        "path": {"type": "string"}
      }
    }
  }
}`

// validateSchema checks a raw config document against configSchema. Duration
// fields may still be strings here; parseDurations runs before this, so by
// the time we validate they are integers, but the schema accepts both forms
// for documents validated externally.
func (l *Loader) validateSchema(raw map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	documentLoader := gojsonschema.NewGoLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		// Build error message from validation errors
		errMsg := "config does not match schema:\n"
		for _, desc := range result.Errors() {
			errMsg += fmt.Sprintf("  - %s: %s\n", desc.Field(), desc.Description())
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}
