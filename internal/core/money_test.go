package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"1500000", 150000000, true},
		{"1000000000000000", 100000000000000000, true},
		{"1000000000000000.01", 0, false},
		{"90000000000000000", 0, false},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.001", 0, false},
		{"1e3", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		m    Money
		want string
	}{
		{FromMajor(0), "Rp 0"},
		{FromMajor(1500000), "Rp 1.500.000"},
		{Money{Cents: 99}, "Rp 1"},
		{FromMajor(-2500), "-Rp 2.500"},
	}
	for _, tc := range cases {
		if got := tc.m.String(); got != tc.want {
			t.Errorf("String(%d) = %q, want %q", tc.m.Cents, got, tc.want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(Money{Cents: 150050})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "1500.5" {
		t.Fatalf("expected 1500.5, got %s", b)
	}

	var m Money
	if err := json.Unmarshal([]byte("2500000"), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Cents != 250000000 {
		t.Fatalf("expected 250000000 cents, got %d", m.Cents)
	}
	if err := json.Unmarshal([]byte(`"abc"`), &m); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
}
