// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package validation

import (
	"strings"
	"testing"
)

type loginRequest struct {
	Username string `validate:"required,min=3,max=64"`
	Password string `validate:"required,min=6"`
}

type registerRequest struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Username string `validate:"required,min=3,max=64"`
	Password string `validate:"required,min=6"`
	Role     string `validate:"required,role"`
}

func TestValidateStructValid(t *testing.T) {
	req := loginRequest{Username: "alice", Password: "secret1"}
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("expected valid struct, got %v", err)
	}
}

func TestValidateStructRequired(t *testing.T) {
	req := loginRequest{}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error for empty struct")
	}
	if len(err.Errors()) != 2 {
		t.Errorf("expected 2 field errors, got %d", len(err.Errors()))
	}
	if !strings.Contains(err.Error(), "Username is required") {
		t.Errorf("expected required message, got %q", err.Error())
	}
}

func TestValidateStructMinLength(t *testing.T) {
	req := loginRequest{Username: "al", Password: "secret1"}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error for short username")
	}
	if !strings.Contains(err.Error(), "at least 3 characters") {
		t.Errorf("expected min-length message, got %q", err.Error())
	}
}

func TestRoleValidator(t *testing.T) {
	tests := []struct {
		role  string
		valid bool
	}{
		{"admin", true},
		{"editor", true},
		{"viewer", true},
		{"superuser", false},
		{"Admin", false},
	}

	for _, tc := range tests {
		req := registerRequest{
			Name:     "Alice",
			Email:    "alice@example.com",
			Username: "alice",
			Password: "secret1",
			Role:     tc.role,
		}
		err := ValidateStruct(&req)
		if tc.valid && err != nil {
			t.Errorf("role %q: expected valid, got %v", tc.role, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("role %q: expected validation error", tc.role)
		}
	}
}

func TestToAPIErrorSingle(t *testing.T) {
	req := loginRequest{Username: "alice"}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR code, got %q", apiErr.Code)
	}
	if apiErr.Details["field"] != "Password" {
		t.Errorf("expected Password field in details, got %v", apiErr.Details["field"])
	}
}

func TestToAPIErrorMultiple(t *testing.T) {
	req := loginRequest{}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("expected fields list in details, got %T", apiErr.Details["fields"])
	}
	if len(fields) != 2 {
		t.Errorf("expected 2 fields, got %d", len(fields))
	}
}
