package asset

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Kind discriminates between a native ledger denomination and a
// contract-based token.
type Kind string

const (
	KindNative Kind = "native"
	KindToken  Kind = "token"
)

// Ref identifies a fungible asset. Exactly one of Denom or Address is set,
// depending on Kind. Ref is comparable and used as a map key; equality is
// exact denomination/address match, two representations of the same economic
// asset are never conflated.
type Ref struct {
	Kind    Kind   `json:"kind"`
	Denom   string `json:"denom,omitempty"`
	Address string `json:"address,omitempty"`
}

// Native returns a Ref for a native denomination such as "uusd".
func Native(denom string) Ref {
	return Ref{Kind: KindNative, Denom: denom}
}

// Token returns a Ref for a token contract address. The address is
// normalized to its checksum form so that equality is stable regardless of
// the hex casing a caller submits.
func Token(address string) Ref {
	if ethcommon.IsHexAddress(address) {
		address = ethcommon.HexToAddress(address).Hex()
	}
	return Ref{Kind: KindToken, Address: address}
}

func (r Ref) IsZero() bool {
	return r == Ref{}
}

func (r Ref) Validate() error {
	switch r.Kind {
	case KindNative:
		if r.Denom == "" {
			return fmt.Errorf("native asset requires a denom")
		}
		if r.Address != "" {
			return fmt.Errorf("native asset must not carry a contract address")
		}
	case KindToken:
		if r.Denom != "" {
			return fmt.Errorf("token asset must not carry a denom")
		}
		if !ethcommon.IsHexAddress(r.Address) {
			return fmt.Errorf("invalid token contract address: %q", r.Address)
		}
	default:
		return fmt.Errorf("unknown asset kind: %q", r.Kind)
	}
	return nil
}

// String renders the "kind:identifier" form used for database keys and
// query parameters. A zero Ref renders as the empty string so optional
// columns (a rejection with no known target asset) round-trip cleanly.
func (r Ref) String() string {
	if r.IsZero() {
		return ""
	}
	if r.Kind == KindToken {
		return string(r.Kind) + ":" + r.Address
	}
	return string(r.Kind) + ":" + r.Denom
}

// ParseRef parses the "kind:identifier" form produced by String. It is used
// for database keys and query parameters.
func ParseRef(s string) (Ref, error) {
	for i := 0; i < len(s); i++ {
		if s[i] != ':' {
			continue
		}
		kind, id := Kind(s[:i]), s[i+1:]
		var ref Ref
		switch kind {
		case KindNative:
			ref = Native(id)
		case KindToken:
			ref = Token(id)
		default:
			return Ref{}, fmt.Errorf("unknown asset kind: %q", kind)
		}
		if err := ref.Validate(); err != nil {
			return Ref{}, err
		}
		return ref, nil
	}
	return Ref{}, fmt.Errorf("malformed asset reference: %q", s)
}
