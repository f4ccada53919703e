package engine

import "errors"

// Every rejection an operation can produce is one of these sentinel errors.
// They are surfaced verbatim to callers so an off-chain executor can correct
// its submission and retry; nothing is swallowed or remapped inside the
// engine.
var (
	ErrUnauthorized             = errors.New("unauthorized")
	ErrInvalidAsset             = errors.New("invalid asset")
	ErrInvalidZeroAmount        = errors.New("amount must be greater than zero")
	ErrDuplicateOrder           = errors.New("an order for this initial asset already exists")
	ErrDepositTooSmall          = errors.New("purchase amount is greater than deposited amount")
	ErrOrderNotFound            = errors.New("order not found")
	ErrOrderNotDue              = errors.New("order is not due for a purchase")
	ErrExceedsMaxHops           = errors.New("route exceeds maximum hop count")
	ErrExceedsMaxSpread         = errors.New("route exceeds maximum spread")
	ErrNotWhitelisted           = errors.New("intermediate asset is not whitelisted")
	ErrInvalidRoute             = errors.New("invalid hop route")
	ErrInsufficientTipBalance   = errors.New("tip balance is insufficient to pay executor")
	ErrInsufficientOrderBalance = errors.New("order balance is less than purchase amount")
	ErrInsufficientBalance      = errors.New("withdrawal exceeds tip balance")
	ErrInvalidConfig            = errors.New("invalid configuration value")
)

var kinds = map[error]string{
	ErrUnauthorized:             "Unauthorized",
	ErrInvalidAsset:             "InvalidAsset",
	ErrInvalidZeroAmount:        "InvalidZeroAmount",
	ErrDuplicateOrder:           "DuplicateOrder",
	ErrDepositTooSmall:          "DepositTooSmall",
	ErrOrderNotFound:            "OrderNotFound",
	ErrOrderNotDue:              "OrderNotDue",
	ErrExceedsMaxHops:           "ExceedsMaxHops",
	ErrExceedsMaxSpread:         "ExceedsMaxSpread",
	ErrNotWhitelisted:           "NotWhitelisted",
	ErrInvalidRoute:             "InvalidRoute",
	ErrInsufficientTipBalance:   "InsufficientTipBalance",
	ErrInsufficientOrderBalance: "InsufficientOrderBalance",
	ErrInsufficientBalance:      "InsufficientBalance",
	ErrInvalidConfig:            "InvalidConfig",
}

// Kind returns the stable name of a rejection, or empty string when err is
// not an engine rejection (for example a collaborator failure).
func Kind(err error) string {
	for sentinel, name := range kinds {
		if errors.Is(err, sentinel) {
			return name
		}
	}
	return ""
}

// FromKind is the inverse of Kind: it resolves a rejection name received
// over the wire back to its sentinel, or nil for unknown names.
func FromKind(name string) error {
	for sentinel, n := range kinds {
		if n == name {
			return sentinel
		}
	}
	return nil
}

// IsRejection reports whether err is a policy rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	return Kind(err) != ""
}
