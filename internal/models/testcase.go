// Package models holds the records shared by the database and HTTP layers.
package models

import (
	"errors"
	"strings"
)

// TestCase is a row of the application's test case table.
// Author and last-executor metadata are owned by the application and not read here.
type TestCase struct {
	ID          int64
	Name        string
	Description string
}

// Domain errors
var (
	ErrInvalidName = errors.New("test case name cannot be empty")
)

// NewTestCase creates a test case for submission. Description may be empty and
// names made only of digits are valid.
func NewTestCase(name, description string) (TestCase, error) {
	if strings.TrimSpace(name) == "" {
		return TestCase{}, ErrInvalidName
	}
	return TestCase{
		Name:        name,
		Description: description,
	}, nil
}

// FindByName returns the first test case with exactly the given name
func FindByName(cases []TestCase, name string) (TestCase, bool) {
	for _, tc := range cases {
		if tc.Name == name {
			return tc, true
		}
	}
	return TestCase{}, false
}
