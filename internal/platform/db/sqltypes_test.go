package db

import (
	"database/sql"
	"testing"
	"time"
)

func TestTimeRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 30, 0, 123456789, time.FixedZone("IST", 19800))
	got, err := ParseTime(FormatTime(at))
	if err != nil {
		t.Fatalf("ParseTime() error: %v", err)
	}
	if !got.Equal(at) {
		t.Errorf("expected %v, got %v", at, got)
	}
	if got.Location() != time.UTC {
		t.Errorf("expected UTC, got %v", got.Location())
	}
}

func TestParseTime_Invalid(t *testing.T) {
	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("expected error for invalid timestamp")
	}
}

func TestNullableHelpers(t *testing.T) {
	if FormatTimePtr(nil) != nil || StringOrNull(nil) != nil || IntOrNull(nil) != nil {
		t.Error("expected nil for nil pointers")
	}
	s := "x"
	if StringOrNull(&s) != "x" {
		t.Error("expected dereferenced string")
	}
	n := 4
	if IntOrNull(&n) != 4 {
		t.Error("expected dereferenced int")
	}

	if NullString(sql.NullString{}) != nil {
		t.Error("expected nil for invalid NullString")
	}
	if v := NullString(sql.NullString{String: "a", Valid: true}); v == nil || *v != "a" {
		t.Errorf("unexpected %v", v)
	}
	if v := NullInt(sql.NullInt64{Int64: 9, Valid: true}); v == nil || *v != 9 {
		t.Errorf("unexpected %v", v)
	}
	if tm, err := ParseNullTime(sql.NullString{}); tm != nil || err != nil {
		t.Errorf("expected nil, nil; got %v, %v", tm, err)
	}
}
