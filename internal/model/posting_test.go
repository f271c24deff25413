package model

import (
	"errors"
	"testing"
)

func TestRawPostingValidate(t *testing.T) {
	tests := []struct {
		name      string
		posting   RawPosting
		wantField string
	}{
		{"valid", RawPosting{Source: "adzuna", JobID: "j1"}, ""},
		{"missing source", RawPosting{JobID: "j1"}, "source"},
		{"missing job_id", RawPosting{Source: "adzuna"}, "job_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.posting.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}
