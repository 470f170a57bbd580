package version

import (
	"errors"
	"testing"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		input string
		major uint16
		minor uint16
	}{
		{"1.0", 1, 0},
		{"1.1", 1, 1},
		{"2.0", 2, 0},
		{"10.23", 10, 23},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if v.Major != tt.major || v.Minor != tt.minor {
				t.Errorf("Parse(%q) = %v, want %d.%d", tt.input, v, tt.major, tt.minor)
			}
			if v.String() != tt.input {
				t.Errorf("String() = %q, want %q", v.String(), tt.input)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{"", "1", "abc", "1.0.0", "1.x", "-1.0", ".1", "1."} {
		t.Run(input, func(t *testing.T) {
			if _, err := Parse(input); err == nil {
				t.Errorf("Parse(%q) should return error", input)
			}
		})
	}
}

func TestCompatible(t *testing.T) {
	a := Version{Major: 1, Minor: 0}
	if !a.Compatible(Version{Major: 1, Minor: 4}) {
		t.Error("1.0 should be compatible with 1.4")
	}
	if a.Compatible(Version{Major: 2, Minor: 0}) {
		t.Error("1.0 should not be compatible with 2.0")
	}
}

func TestSubprotocol(t *testing.T) {
	if got := Subprotocol(1); got != "streamio/1" {
		t.Errorf("Subprotocol(1) = %q", got)
	}

	major, err := MajorFromSubprotocol("streamio/3")
	if err != nil || major != 3 {
		t.Errorf("MajorFromSubprotocol(streamio/3) = %d, %v", major, err)
	}

	for _, bad := range []string{"other/1", "streamio/", "streamio/x"} {
		if _, err := MajorFromSubprotocol(bad); err == nil {
			t.Errorf("MajorFromSubprotocol(%q) should fail", bad)
		}
	}

	if got := SupportedSubprotocols(); len(got) != 1 || got[0] != "streamio/1" {
		t.Errorf("SupportedSubprotocols() = %v", got)
	}
}

func TestCheck(t *testing.T) {
	if err := Check(""); err != nil {
		t.Errorf("Check(\"\") = %v", err)
	}
	if err := Check("streamio/1"); err != nil {
		t.Errorf("Check(streamio/1) = %v", err)
	}
	if err := Check("streamio/2"); !errors.Is(err, ErrIncompatible) {
		t.Errorf("Check(streamio/2) = %v, want ErrIncompatible", err)
	}
	if err := Check("other"); !errors.Is(err, ErrIncompatible) {
		t.Errorf("Check(other) = %v, want ErrIncompatible", err)
	}
}
