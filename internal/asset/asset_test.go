package asset

import (
	"testing"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		in      string
		want    Ref
		wantErr bool
	}{
		{"native:uusd", Native("uusd"), false},
		{"native:uluna", Native("uluna"), false},
		{"token:0x6B175474E89094C44Da98b954EedeAC495271d0F", Token("0x6B175474E89094C44Da98b954EedeAC495271d0F"), false},
		{"uusd", Ref{}, true},
		{"native:", Ref{}, true},
		{"token:notanaddress", Ref{}, true},
		{"cw20:0x6B175474E89094C44Da98b954EedeAC495271d0F", Ref{}, true},
	}

	for _, tt := range tests {
		got, err := ParseRef(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRef(%q) expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRef(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRef(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTokenNormalizesCasing(t *testing.T) {
	lower := Token("0x6b175474e89094c44da98b954eedeac495271d0f")
	mixed := Token("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	if lower != mixed {
		t.Errorf("expected normalized token refs to be equal: %v != %v", lower, mixed)
	}
}

func TestRefStringRoundTrip(t *testing.T) {
	refs := []Ref{
		Native("uusd"),
		Token("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
	}
	for _, ref := range refs {
		got, err := ParseRef(ref.String())
		if err != nil {
			t.Fatalf("ParseRef(%q) failed: %v", ref.String(), err)
		}
		if got != ref {
			t.Errorf("round trip of %v produced %v", ref, got)
		}
	}
}

func TestZeroRefStringIsEmpty(t *testing.T) {
	var zero Ref
	if got := zero.String(); got != "" {
		t.Errorf("zero Ref String() = %q, want empty string", got)
	}
}

func TestValidateRejectsMixedFields(t *testing.T) {
	bad := Ref{Kind: KindNative, Denom: "uusd", Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F"}
	if err := bad.Validate(); err == nil {
		t.Error("expected validation error for native ref with address")
	}
}
