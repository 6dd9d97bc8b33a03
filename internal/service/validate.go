package service

import (
	"encoding/json"
	"net/mail"
	"strings"

	"github.com/dukerupert/flatmate/internal/apperr"
)

const (
	maxNameLength        = 100
	maxTitleLength       = 200
	maxDescriptionLength = 2000
)

// Optional distinguishes a JSON field that was absent (Set false) from one
// that was explicitly null (Set true, Value nil).
type Optional[T any] struct {
	Set   bool
	Value *T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

func requireText(value, field string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperr.Validation(field + " is required")
	}
	if len(value) > max {
		return "", apperr.Validation(field + " is too long")
	}
	return value, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperr.Validation("Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("Invalid email address")
	}
	return email, nil
}
