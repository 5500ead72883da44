// Package models defines the core domain entities: queries, broker metrics,
// market snapshots, computed targets and persisted query records.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// ErrMissingFields is returned when any of the required query fields is empty.
var ErrMissingFields = errors.New("Missing required fields: emiten, fromDate, toDate")

// ValidationError reports a user-correctable problem with a query.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Query is a request for the analytics of one ticker over [FromDate, ToDate].
type Query struct {
	Emiten   string `json:"emiten"`
	FromDate string `json:"fromDate"`
	ToDate   string `json:"toDate"`
}

// Normalize trims whitespace and upper-cases the ticker.
func (q Query) Normalize() Query {
	return Query{
		Emiten:   strings.ToUpper(strings.TrimSpace(q.Emiten)),
		FromDate: strings.TrimSpace(q.FromDate),
		ToDate:   strings.TrimSpace(q.ToDate),
	}
}

// Validate checks query field constraints.
func (q Query) Validate() error {
	if q.Emiten == "" || q.FromDate == "" || q.ToDate == "" {
		return ErrMissingFields
	}
	from, err := time.Parse(DateLayout, q.FromDate)
	if err != nil {
		return &ValidationError{Field: "fromDate", Reason: "must be formatted as YYYY-MM-DD"}
	}
	to, err := time.Parse(DateLayout, q.ToDate)
	if err != nil {
		return &ValidationError{Field: "toDate", Reason: "must be formatted as YYYY-MM-DD"}
	}
	if from.After(to) {
		return &ValidationError{Field: "fromDate", Reason: "must not be after toDate"}
	}
	return nil
}

// IsSingleDate reports whether the query covers exactly one trading day.
// Only single-date results are persisted.
func (q Query) IsSingleDate() bool {
	return q.FromDate == q.ToDate
}

// IsValidationError reports whether err is a user-correctable query error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrMissingFields) || errors.As(err, &ve)
}
