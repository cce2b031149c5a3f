package config

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		def  time.Duration
		want time.Duration
		ok   bool
	}{
		{name: "empty falls back", raw: "", def: time.Minute, want: time.Minute, ok: true},
		{name: "zero falls back", raw: "0s", def: time.Minute, want: time.Minute, ok: true},
		{name: "zero with zero default", raw: "0s", def: 0, want: 0, ok: true},
		{name: "value wins", raw: "30s", def: time.Minute, want: 30 * time.Second, ok: true},
		{name: "garbage rejected", raw: "soon", def: time.Minute, ok: false},
		{name: "negative rejected", raw: "-5s", def: time.Minute, ok: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDuration("field", tc.raw, tc.def)
			if tc.ok && err != nil {
				t.Fatalf("ParseDuration(%q) error: %v", tc.raw, err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("ParseDuration(%q) expected error", tc.raw)
				}
				return
			}
			if got != tc.want {
				t.Fatalf("ParseDuration(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}
