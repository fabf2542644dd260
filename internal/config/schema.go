package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// suiteSchema describes the accepted shape of a suite file.
const suiteSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["tests"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string"},
    "defaults": {"$ref": "#/definitions/test"},
    "tests": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {"$ref": "#/definitions/test"}
    }
  },
  "definitions": {
    "test": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "workload": {
          "type": "object",
          "required": ["type"],
          "additionalProperties": false,
          "properties": {
            "type": {"enum": ["http", "command", "sleep"]},
            "url": {"type": "string"},
            "method": {"type": "string"},
            "headers": {"type": "object", "additionalProperties": {"type": "string"}},
            "body": {"type": "string"},
            "timeout": {"type": "string"},
            "command": {"type": "array", "items": {"type": "string"}},
            "sleep": {"type": "string"}
          }
        },
        "execution": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "invocations": {"type": "integer", "minimum": 0},
            "duration": {"type": "string"},
            "durationBound": {"type": "boolean"},
            "threads": {"type": "integer", "minimum": 1},
            "timer": {"enum": ["none", "constant", "random", "cumulated"]},
            "timerParams": {"type": "array", "items": {"type": "number"}, "maxItems": 3},
            "rampup": {"type": "string"},
            "timeout": {"type": "string"},
            "skipUnrepeatable": {"type": "boolean"},
            "cancelOnViolation": {"type": "boolean"},
            "clocks": {"type": "array", "items": {"enum": ["system", "user", "cpu"]}}
          }
        },
        "required": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "max": {"type": "integer", "minimum": 0},
            "average": {"type": "number", "minimum": 0},
            "median": {"type": "integer", "minimum": 0},
            "percentiles": {"type": "string", "pattern": "^\\s*(\\d+\\s*:\\s*\\d+\\s*)?(,\\s*\\d+\\s*:\\s*\\d+\\s*)*$"},
            "percentile90": {"type": "integer", "minimum": 0},
            "percentile95": {"type": "integer", "minimum": 0},
            "percentile99": {"type": "integer", "minimum": 0},
            "throughput": {"type": "number", "minimum": 0},
            "totalTime": {"type": "integer", "minimum": 0},
            "errorsRate": {"type": "number", "minimum": 0, "maximum": 1}
          }
        }
      }
    }
  }
}`

var (
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
	compileOnce       sync.Once
)

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("suite.json", strings.NewReader(suiteSchema)); err != nil {
			compiledSchemaErr = fmt.Errorf("invalid schema: %w", err)
			return
		}
		compiledSchema, compiledSchemaErr = compiler.Compile("suite.json")
	})
	return compiledSchema, compiledSchemaErr
}

// validateSchema checks a decoded document against the suite schema. The
// document is round-tripped through JSON so YAML values have JSON types.
func validateSchema(doc interface{}) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config is not representable as JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var normalized interface{}
	if err := dec.Decode(&normalized); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	err = schema.Validate(normalized)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}

	errs := &ValidationErrors{}
	collectSchemaErrors(verr, errs)
	if !errs.HasErrors() {
		errs.Add("", verr.Error())
	}
	return errs
}

// collectSchemaErrors flattens the leaf causes of a schema validation error.
func collectSchemaErrors(err *jsonschema.ValidationError, errs *ValidationErrors) {
	if len(err.Causes) == 0 {
		field := strings.TrimPrefix(strings.ReplaceAll(err.InstanceLocation, "/", "."), ".")
		errs.Add(field, err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, errs)
	}
}
