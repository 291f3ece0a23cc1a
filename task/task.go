// Package task provides task definitions, the persisted registry, and
// prompt compilation.
package task

import (
	"errors"
	"sort"
	"strings"
)

// ErrNotFound is returned when a task id is unknown.
var ErrNotFound = errors.New("task not found")

// Definition is a named, reusable prompt template plus metadata controlling
// display and attachment capability.
type Definition struct {
	// ID is an opaque unique identifier, stable across sessions.
	ID string `json:"id"`

	// Name and Description are display strings.
	Name        string `json:"name"`
	Description string `json:"description"`

	// PromptTemplate contains zero or more occurrences of the
	// {{input_text}} placeholder.
	PromptTemplate string `json:"prompt"`

	// UsesAttachments marks tasks that require file attachments to be
	// collected before execution.
	UsesAttachments bool `json:"uses_attachments"`

	// IsActive hides the task from selection when false; the definition
	// stays in storage.
	IsActive bool `json:"is_active"`

	// Order defines display sort order. Ties break by name,
	// case-insensitive.
	Order int `json:"order"`
}

// Validate checks the fields the authoring surface requires.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(d.PromptTemplate) == "" {
		return errors.New("prompt is required")
	}
	return nil
}

// sortDefinitions orders by Order, ties broken by case-insensitive name.
func sortDefinitions(defs []Definition) {
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].Order != defs[j].Order {
			return defs[i].Order < defs[j].Order
		}
		return strings.ToLower(defs[i].Name) < strings.ToLower(defs[j].Name)
	})
}
