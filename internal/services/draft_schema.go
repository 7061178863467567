package services

import (
	"fmt"
	"strings"

	"github.com/crewhire/onboarding-backend/pkg/validator"
	"github.com/xeipuuv/gojsonschema"
)

// draftSchema checks the shape of a draft payload before it is decoded.
// Business rules per step live in pkg/validator; this only rejects wrong types and oversized values.
const draftSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["phone", "current_step", "data"],
  "properties": {
    "phone": {"type": "string", "maxLength": 20},
    "current_step": {"type": "integer", "minimum": 1, "maximum": 6},
    "data": {
      "type": "object",
      "properties": {
        "full_name": {"type": "string", "maxLength": 200},
        "date_of_birth": {"type": "string", "maxLength": 10},
        "gender": {"type": "string"},
        "phone": {"type": "string", "maxLength": 20},
        "email": {"type": "string", "maxLength": 254},
        "secondary_phone": {"type": "string", "maxLength": 20},
        "current_address": {"$ref": "#/definitions/address"},
        "permanent_address": {"$ref": "#/definitions/address"},
        "highest_qualification": {"type": "string", "maxLength": 100},
        "institution": {"type": "string", "maxLength": 200},
        "year_of_passing": {"type": "integer"},
        "work_history": {
          "type": "array",
          "maxItems": 20,
          "items": {
            "type": "object",
            "properties": {
              "employer": {"type": "string", "maxLength": 200},
              "designation": {"type": "string", "maxLength": 100},
              "from": {"type": "string"},
              "to": {"type": "string"}
            }
          }
        },
        "uniform_size": {"type": "string"},
        "shoe_size": {"type": "integer", "minimum": 0, "maximum": 20},
        "has_medical_condition": {"type": "boolean"},
        "medical_details": {"type": "string", "maxLength": 2000},
        "emergency_contact_name": {"type": "string", "maxLength": 200},
        "emergency_contact_phone": {"type": "string", "maxLength": 20},
        "role": {"type": "string", "maxLength": 100},
        "outlet_code": {"type": "string", "maxLength": 50},
        "field_coach_id": {"type": "string"},
        "date_of_joining": {"type": "string", "maxLength": 10},
        "pan_number": {"type": "string", "maxLength": 10},
        "aadhaar_number": {"type": "string", "maxLength": 14}
      }
    }
  },
  "definitions": {
    "address": {
      "type": "object",
      "properties": {
        "line1": {"type": "string", "maxLength": 300},
        "line2": {"type": "string", "maxLength": 300},
        "city": {"type": "string", "maxLength": 100},
        "state": {"type": "string", "maxLength": 100},
        "pincode": {"type": "string", "maxLength": 6}
      }
    }
  }
}`

var draftSchemaLoader = gojsonschema.NewStringLoader(draftSchema)

// CheckDraftShape validates a raw draft payload against the draft schema.
// Errors are keyed by field path without the "data." prefix so they line up with step validation.
func CheckDraftShape(raw []byte) (validator.FieldErrors, error) {
	result, err := gojsonschema.Validate(draftSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to validate draft payload: %w", err)
	}

	errs := validator.FieldErrors{}
	for _, e := range result.Errors() {
		field := e.Field()
		if e.Type() == "required" {
			if name, ok := e.Details()["property"].(string); ok {
				field = name
			}
		}
		field = strings.TrimPrefix(field, "data.")
		if _, exists := errs[field]; !exists {
			errs[field] = e.Description()
		}
	}
	return errs, nil
}
