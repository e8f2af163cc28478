package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeDateOnly(t *testing.T) {
	got, ok := ParseTime("2021-03-15")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	if got := ParseTimeDefault("", def); !got.Equal(def) {
		t.Fatalf("expected default")
	}
	if got := ParseTimeDefault("yesterday", def); !got.Equal(def) {
		t.Fatalf("expected default for garbage input")
	}
}

func TestAlignDays(t *testing.T) {
	from := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	to := time.Date(2024, 1, 9, 1, 0, 0, 0, time.UTC)
	f, tt := AlignDays(from, to)
	if !f.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from = %v", f)
	}
	if !tt.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)) {
		t.Fatalf("to = %v", tt)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" AAPL, ,MSFT,BTC-USD ")
	if len(got) != 3 || got[0] != "AAPL" || got[1] != "MSFT" || got[2] != "BTC-USD" {
		t.Fatalf("unexpected %v", got)
	}
	if ParseIntDefault("x", 7) != 7 || ParseIntDefault("5432", 0) != 5432 {
		t.Fatalf("ParseIntDefault")
	}
}
