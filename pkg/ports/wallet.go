package ports

import (
	"context"

	"github.com/aretw0/ussdflow/pkg/domain"
)

// Wallet is the custodial wallet backend.
// A returned error means the call itself failed (transport, timeout); a
// business refusal is a response with Ok=false.
type Wallet interface {
	Do(ctx context.Context, req domain.WalletRequest) (domain.WalletResponse, error)
}

// Notifier delivers an SMS text to a phone number.
type Notifier interface {
	Notify(ctx context.Context, phone, text string) error
}
