package main

import "testing"

func TestParseActiveHours(t *testing.T) {
	cases := []struct {
		name        string
		from, to    string
		wantEnabled bool
		wantStart   int
		wantEnd     int
	}{
		{"both set", "08:00", "22:00", true, 8 * 60, 22 * 60},
		{"wrapping midnight", "22:00", "06:00", true, 22 * 60, 6 * 60},
		{"blank disables", "", "", false, 0, 0},
		{"malformed disables", "not-a-time", "22:00", false, 0, 0},
		{"out of range hour disables", "24:00", "22:00", false, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseActiveHours(tc.from, tc.to)
			if got.Enabled != tc.wantEnabled {
				t.Fatalf("Enabled = %v, want %v", got.Enabled, tc.wantEnabled)
			}
			if !tc.wantEnabled {
				return
			}
			if got.Start != tc.wantStart || got.End != tc.wantEnd {
				t.Fatalf("Start/End = %d/%d, want %d/%d", got.Start, got.End, tc.wantStart, tc.wantEnd)
			}
		})
	}
}

func TestParseHHMM(t *testing.T) {
	if m, ok := parseHHMM("09:05"); !ok || m != 9*60+5 {
		t.Fatalf("parseHHMM(09:05) = %d, %v, want %d, true", m, ok, 9*60+5)
	}
	if _, ok := parseHHMM("9"); ok {
		t.Fatal("parseHHMM(9) = ok, want malformed")
	}
	if _, ok := parseHHMM("12:60"); ok {
		t.Fatal("parseHHMM(12:60) = ok, want out-of-range minute rejected")
	}
}
