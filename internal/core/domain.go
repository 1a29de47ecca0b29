package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const dateLayout = "2006-01-02"

// MaxCommentLength caps an entry comment, counted in characters.
const MaxCommentLength = 500

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Status is a free-form classification tag, e.g. business or personal.
	Status struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// TransactionType is the income/expense axis, modeled as an open set.
	TransactionType struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	Category struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		TypeID string `json:"type_id"`
	}

	Subcategory struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		CategoryID string `json:"category_id"`
	}

	// Entry is one dated cash-flow record.
	Entry struct {
		ID            string
		Date          Date
		StatusID      string
		TypeID        string
		CategoryID    string
		SubcategoryID string
		Amount        Money
		Comment       string // optional
		CreatedAt     time.Time
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrMissingParent    = errors.New("missing parent")
	ErrDuplicateName    = errors.New("duplicate name")
	ErrHasDependents    = errors.New("record has dependents")
	ErrNotFound         = errors.New("not found")
	ErrMissingReference = errors.New("missing reference")
	ErrInvalidReference = errors.New("invalid reference")
	ErrCommentTooLong   = errors.New("comment too long (max 500 characters)")
)

// ErrorKind groups errors the same way the log package labels them.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation_error"
	KindConflict   ErrorKind = "conflict_error"
	KindNotFound   ErrorKind = "not_found_error"
	KindInternal   ErrorKind = "internal_error"
)

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateName), errors.Is(err, ErrHasDependents):
		return KindConflict
	case errors.Is(err, ErrEmptyName),
		errors.Is(err, ErrMissingParent),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidDay),
		errors.Is(err, ErrInvalidMonth),
		errors.Is(err, ErrMissingReference),
		errors.Is(err, ErrInvalidReference),
		errors.Is(err, ErrCommentTooLong):
		return KindValidation
	default:
		return KindInternal
	}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// String returns the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON overrides the promoted time.Time encoding with YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, b)
	}
	return d.UnmarshalText([]byte(s))
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// NormalizeName trims name and rejects blank values.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

// SameName reports whether two names collide (trimmed, case-insensitive).
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func (e Entry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	refs := []struct{ field, value string }{
		{"status", e.StatusID},
		{"type", e.TypeID},
		{"category", e.CategoryID},
		{"subcategory", e.SubcategoryID},
	}
	for _, ref := range refs {
		if strings.TrimSpace(ref.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrMissingReference, ref.field)
		}
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(e.Comment); n > MaxCommentLength {
		return fmt.Errorf("%w: %d characters", ErrCommentTooLong, n)
	}
	return nil
}
