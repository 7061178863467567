package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDraftShape(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		fields  []string
	}{
		{
			name:    "valid draft",
			payload: `{"phone":"9876543210","current_step":2,"data":{"full_name":"Rahul","shoe_size":9,"current_address":{"pincode":"560001"}}}`,
		},
		{
			name:    "missing step",
			payload: `{"phone":"9876543210","data":{}}`,
			fields:  []string{"current_step"},
		},
		{
			name:    "step out of range",
			payload: `{"phone":"9876543210","current_step":7,"data":{}}`,
			fields:  []string{"current_step"},
		},
		{
			name:    "wrong types inside data",
			payload: `{"phone":"9876543210","current_step":3,"data":{"shoe_size":"nine","has_medical_condition":"no"}}`,
			fields:  []string{"shoe_size", "has_medical_condition"},
		},
		{
			name:    "nested address too long",
			payload: `{"phone":"9876543210","current_step":2,"data":{"permanent_address":{"pincode":"5600010"}}}`,
			fields:  []string{"permanent_address.pincode"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, err := CheckDraftShape([]byte(tt.payload))
			require.NoError(t, err)
			if len(tt.fields) == 0 {
				assert.Empty(t, errs)
				return
			}
			for _, f := range tt.fields {
				assert.Contains(t, errs, f)
			}
		})
	}
}

func TestCheckDraftShape_NotJSON(t *testing.T) {
	_, err := CheckDraftShape([]byte(`{"phone":`))
	assert.Error(t, err)
}
