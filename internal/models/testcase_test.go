package models

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewTestCase(t *testing.T) {
	tests := []struct {
		name        string
		caseName    string
		description string
		wantErr     error
	}{
		{
			name:        "valid data",
			caseName:    "Test Case Name",
			description: "This is a test case",
			wantErr:     nil,
		},
		{
			name:        "without description",
			caseName:    "Test Case Name",
			description: "",
			wantErr:     nil,
		},
		{
			name:        "digits only name",
			caseName:    "049",
			description: "This is a test case",
			wantErr:     nil,
		},
		{
			name:        "empty name",
			caseName:    "",
			description: "This is a test case",
			wantErr:     ErrInvalidName,
		},
		{
			name:        "whitespace name",
			caseName:    "   ",
			description: "",
			wantErr:     ErrInvalidName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := NewTestCase(tt.caseName, tt.description)
			if err != tt.wantErr {
				t.Fatalf("NewTestCase() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			want := TestCase{Name: tt.caseName, Description: tt.description}
			if diff := cmp.Diff(want, tc); diff != "" {
				t.Errorf("NewTestCase() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindByName(t *testing.T) {
	cases := []TestCase{
		{ID: 1, Name: "Login works"},
		{ID: 2, Name: "049"},
		{ID: 3, Name: "049 extended"},
	}

	tc, ok := FindByName(cases, "049")
	if !ok {
		t.Fatal("expected to find 049")
	}
	if diff := cmp.Diff(cases[1], tc); diff != "" {
		t.Errorf("FindByName() mismatch (-want +got):\n%s", diff)
	}

	if _, ok := FindByName(cases, "04"); ok {
		t.Error("partial names must not match")
	}
}
