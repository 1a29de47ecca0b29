package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-10")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.String() != "2025-01-10" {
		t.Fatalf("unexpected date %s", d)
	}
	if _, err := ParseDate("10/01/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}

	var back Date
	if err := back.UnmarshalText([]byte("2025-01-10")); err != nil || !back.Equal(d.Time) {
		t.Fatalf("unmarshal text: %v %v", back, err)
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		D Date `json:"d"`
	}{NewDate(2025, 1, 10)})
	if err != nil || string(b) != `{"d":"2025-01-10"}` {
		t.Fatalf("marshal: %s %v", b, err)
	}

	var back struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2025-02-28"}`), &back); err != nil || back.D.String() != "2025-02-28" {
		t.Fatalf("unmarshal: %v %v", back.D, err)
	}
	if err := json.Unmarshal([]byte(`{"d":"28.02.2025"}`), &back); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	if err := json.Unmarshal([]byte(`{"d":17}`), &back); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for number, got %v", err)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -5}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

func TestEntryValidate(t *testing.T) {
	good := Entry{
		Date:          NewDate(2025, 1, 1),
		StatusID:      "business",
		TypeID:        "expense",
		CategoryID:    "infrastructure",
		SubcategoryID: "vps",
		Amount:        FromUnits(5000),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		mutate func(*Entry)
		want   error
	}{
		{func(e *Entry) { e.Date = Date{} }, ErrInvalidDate},
		{func(e *Entry) { e.StatusID = "" }, ErrMissingReference},
		{func(e *Entry) { e.TypeID = " " }, ErrMissingReference},
		{func(e *Entry) { e.CategoryID = "" }, ErrMissingReference},
		{func(e *Entry) { e.SubcategoryID = "" }, ErrMissingReference},
		{func(e *Entry) { e.Amount = Money{} }, ErrInvalidAmount},
		{func(e *Entry) { e.Comment = strings.Repeat("x", 501) }, ErrCommentTooLong},
		{func(e *Entry) { e.Comment = strings.Repeat("ж", 501) }, ErrCommentTooLong},
	}
	for i, tc := range bads {
		e := good
		tc.mutate(&e)
		if err := e.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestEntryCommentCountsCharacters(t *testing.T) {
	e := Entry{
		Date:          NewDate(2025, 1, 1),
		StatusID:      "business",
		TypeID:        "expense",
		CategoryID:    "infrastructure",
		SubcategoryID: "vps",
		Amount:        FromUnits(5000),
	}

	// 500 two-byte characters are 1000 bytes but still within the limit.
	e.Comment = strings.Repeat("ж", MaxCommentLength)
	if err := e.Validate(); err != nil {
		t.Fatalf("expected %d Cyrillic characters to pass, got %v", MaxCommentLength, err)
	}
	e.Comment = strings.Repeat("ж", 300)
	if err := e.Validate(); err != nil {
		t.Fatalf("expected 300 Cyrillic characters to pass, got %v", err)
	}
}

func TestNormalizeAndSameName(t *testing.T) {
	if _, err := NormalizeName("   "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if n, err := NormalizeName("  Marketing "); err != nil || n != "Marketing" {
		t.Fatalf("unexpected %q %v", n, err)
	}
	if !SameName("marketing", " MARKETING") {
		t.Fatalf("expected case-insensitive match")
	}
	if SameName("Marketing", "Market") {
		t.Fatalf("unexpected match")
	}
}

func TestKindOf(t *testing.T) {
	cases := map[error]ErrorKind{
		fmt.Errorf("add category: %w", ErrDuplicateName): KindConflict,
		fmt.Errorf("delete type: %w", ErrHasDependents):  KindConflict,
		fmt.Errorf("update entry: %w", ErrNotFound):      KindNotFound,
		ErrEmptyName:                  KindValidation,
		ErrInvalidAmount:              KindValidation,
		ErrMissingParent:              KindValidation,
		errors.New("something broke"): KindInternal,
	}
	for err, want := range cases {
		if got := KindOf(err); got != want {
			t.Fatalf("KindOf(%v) = %s, want %s", err, got, want)
		}
	}
}

func TestReferenceLookups(t *testing.T) {
	rd := ReferenceData{
		Statuses:   []Status{{ID: "business", Name: "Business"}},
		Types:      []TransactionType{{ID: "income", Name: "Income"}, {ID: "expense", Name: "Expense"}},
		Categories: []Category{{ID: "a", Name: "A", TypeID: "income"}, {ID: "b", Name: "B", TypeID: "expense"}, {ID: "c", Name: "C", TypeID: "income"}},
		Subcategories: []Subcategory{
			{ID: "x", Name: "X", CategoryID: "a"},
			{ID: "y", Name: "Y", CategoryID: "b"},
		},
	}

	got := rd.CategoriesByType("income")
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("unexpected categories: %v", got)
	}
	if got := rd.CategoriesByType("missing"); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
	if subs := rd.SubcategoriesByCategory("b"); len(subs) != 1 || subs[0].ID != "y" {
		t.Fatalf("unexpected subcategories: %v", subs)
	}
	if rd.StatusName("business") != "Business" || rd.StatusName("gone") != UnknownName {
		t.Fatalf("status name lookup failed")
	}
	if rd.CategoryName("zzz") != UnknownName {
		t.Fatalf("expected unknown category name")
	}

	clone := rd.Clone()
	clone.Categories[0].Name = "changed"
	if rd.Categories[0].Name != "A" {
		t.Fatalf("clone shares backing array")
	}
}
