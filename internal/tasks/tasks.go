package tasks

const (
	QUEUE_NAME = "dca_queue"

	TypePurchaseAttempt = "dca:purchase_attempt"
)

// PurchaseAttemptPayload asks the worker to attempt one purchase on the order
// keyed by (Owner, InitialAsset). Nonce deduplicates retries of the same
// scheduler tick.
type PurchaseAttemptPayload struct {
	Owner        string `json:"owner"`
	InitialAsset string `json:"initial_asset"`
	Nonce        string `json:"nonce"`
}
