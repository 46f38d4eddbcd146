package domain

// WalletOperation names a custodial backend operation.
type WalletOperation string

const (
	WalletBalance  WalletOperation = "balance"
	WalletTransfer WalletOperation = "transfer"
)

// Wallet error codes the flows know how to explain.
// Any other code is rendered with the generic backend failure message.
const (
	WalletErrInsufficientFunds = "INSUFFICIENT_FUNDS"
	WalletErrInvalidPIN        = "INVALID_PIN"
	WalletErrUnknownRecipient  = "UNKNOWN_RECIPIENT"
	WalletErrUnavailable       = "UNAVAILABLE"
)

// WalletRequest is sent to the custodial backend.
type WalletRequest struct {
	Operation  WalletOperation `json:"operation"`
	AccountRef string          `json:"account_ref"`
	Amount     *float64        `json:"amount,omitempty"`
	Recipient  string          `json:"recipient,omitempty"`
	PINHash    string          `json:"pin_hash,omitempty"`
	// IdempotencyKey lets the backend deduplicate retried transfers.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// WalletResponse is the backend answer. Ok=false is a recoverable failure.
type WalletResponse struct {
	Ok        bool           `json:"ok"`
	Result    map[string]any `json:"result,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
}
