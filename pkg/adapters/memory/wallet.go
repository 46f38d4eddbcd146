package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/ussdflow/pkg/domain"
)

// Account is one wallet account of the in-memory backend.
type Account struct {
	Balance float64
	PINHash string
}

// Wallet is an in-memory custodial wallet backend implementing ports.Wallet.
// It backs the simulator and tests. Transfers are idempotent per IdempotencyKey.
type Wallet struct {
	mu       sync.Mutex
	accounts map[string]*Account
	applied  map[string]domain.WalletResponse
	// Fail forces every call to return a transport error when non-nil.
	Fail error
}

// NewWallet creates an empty in-memory wallet.
func NewWallet() *Wallet {
	return &Wallet{
		accounts: make(map[string]*Account),
		applied:  make(map[string]domain.WalletResponse),
	}
}

// Open creates or replaces an account.
func (w *Wallet) Open(ref string, balance float64, pinHash string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accounts[ref] = &Account{Balance: balance, PINHash: pinHash}
}

// Balance returns the balance of ref.
func (w *Wallet) Balance(ref string) (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	acc, ok := w.accounts[ref]
	if !ok {
		return 0, false
	}
	return acc.Balance, true
}

// Do implements ports.Wallet.
func (w *Wallet) Do(ctx context.Context, req domain.WalletRequest) (domain.WalletResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.WalletResponse{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.Fail != nil {
		return domain.WalletResponse{}, w.Fail
	}

	acc, ok := w.accounts[req.AccountRef]
	if !ok {
		return refuse("ACCOUNT_NOT_FOUND"), nil
	}
	if acc.PINHash != "" && req.PINHash != acc.PINHash {
		return refuse(domain.WalletErrInvalidPIN), nil
	}

	switch req.Operation {
	case domain.WalletBalance:
		return domain.WalletResponse{Ok: true, Result: map[string]any{"balance": acc.Balance}}, nil

	case domain.WalletTransfer:
		if req.IdempotencyKey != "" {
			if resp, done := w.applied[req.IdempotencyKey]; done {
				return resp, nil
			}
		}
		resp := w.transfer(acc, req)
		if req.IdempotencyKey != "" {
			w.applied[req.IdempotencyKey] = resp
		}
		return resp, nil

	default:
		return domain.WalletResponse{}, fmt.Errorf("memory wallet: unsupported operation %q", req.Operation)
	}
}

func (w *Wallet) transfer(from *Account, req domain.WalletRequest) domain.WalletResponse {
	if req.Amount == nil || *req.Amount <= 0 {
		return refuse("INVALID_AMOUNT")
	}
	to, ok := w.accounts[req.Recipient]
	if !ok {
		return refuse(domain.WalletErrUnknownRecipient)
	}
	if from.Balance < *req.Amount {
		return refuse(domain.WalletErrInsufficientFunds)
	}
	from.Balance -= *req.Amount
	to.Balance += *req.Amount
	return domain.WalletResponse{Ok: true, Result: map[string]any{
		"balance":   from.Balance,
		"reference": req.IdempotencyKey,
	}}
}

func refuse(code string) domain.WalletResponse {
	return domain.WalletResponse{Ok: false, ErrorCode: code}
}
