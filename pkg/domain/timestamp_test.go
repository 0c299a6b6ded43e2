package domain

import (
	"testing"
	"time"
)

func TestParseTimestampNaiveUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	got, err := ParseTimestamp("2024-01-01T08:00:00", loc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got.UTC())
	}
}

func TestParseTimestampNaiveDefaultsToUTC(t *testing.T) {
	got, err := ParseTimestamp("2024-01-01 08:00:00.250", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(time.Date(2024, 1, 1, 8, 0, 0, 250_000_000, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimestampZoned(t *testing.T) {
	got, err := ParseTimestamp("2024-01-01T08:00:00+01:00", time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got.UTC())
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2024-13-01T00:00:00"} {
		if _, err := ParseTimestamp(in, nil); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestFormatTimestampRoundTrips(t *testing.T) {
	now := time.Date(2024, 3, 4, 5, 6, 7, 8, time.UTC)
	got, err := ParseTimestamp(FormatTimestamp(now), nil)
	if err != nil || !got.Equal(now) {
		t.Fatalf("round trip: got %v err %v", got, err)
	}
}
