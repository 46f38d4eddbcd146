// Package flows declares the wallet menu served by ussdflow: language
// selection, balance, send money, settings and feedback.
package flows

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/ussdflow/internal/runtime"
	"github.com/aretw0/ussdflow/pkg/catalog"
	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/aretw0/ussdflow/pkg/guard"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

//go:embed locales
var Locales embed.FS

// Catalog loads the embedded locale files.
func Catalog() (*catalog.Catalog, error) {
	return catalog.Load(Locales)
}

// States of the wallet menu.
const (
	StateLanguage         domain.StateID = "language"
	StateMenu             domain.StateID = "menu"
	StateBalancePIN       domain.StateID = "balance_pin"
	StateBalance          domain.StateID = "balance"
	StateSendRecipient    domain.StateID = "send_recipient"
	StateSendAmount       domain.StateID = "send_amount"
	StateSendPIN          domain.StateID = "send_pin"
	StateSendConfirm      domain.StateID = "send_confirm"
	StateSendDone         domain.StateID = "send_done"
	StateCancelled        domain.StateID = "cancelled"
	StateWalletError      domain.StateID = "wallet_error"
	StateSettings         domain.StateID = "settings"
	StateSettingsLanguage domain.StateID = "settings_language"
	StateSettingsSaved    domain.StateID = "settings_saved"
	StateFeedback         domain.StateID = "feedback"
	StateFeedbackThanks   domain.StateID = "feedback_thanks"
	StateGoodbye          domain.StateID = "goodbye"
)

// Session data keys written by the flow effects.
const (
	KeyRecipient = "recipient"
	KeyAmount    = "amount"
	KeyPINHash   = "pin_hash"
	KeyBalance   = "balance"
	KeyReference = "reference"
	KeyFeedback  = "feedback"
)

// Config parameterizes the table.
type Config struct {
	Languages guard.LanguageSet

	// MinAmount and MaxAmount bound a transfer. A zero MaxAmount is unbounded.
	MinAmount float64
	MaxAmount float64

	PINLength   int
	FeedbackMax int

	// PINTTL shortens the idle timeout of states holding a PIN hash.
	PINTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinAmount <= 0 {
		c.MinAmount = 1
	}
	if c.PINLength <= 0 {
		c.PINLength = 4
	}
	if c.FeedbackMax <= 0 {
		c.FeedbackMax = 140
	}
	return c
}

// HashPIN derives the value stored and sent in place of a PIN.
func HashPIN(accountRef, pin string) string {
	sum := sha256.Sum256([]byte(accountRef + ":" + strings.TrimSpace(pin)))
	return hex.EncodeToString(sum[:])
}

// LanguageMenu renders the numbered language options in each language's own name.
func LanguageMenu(set guard.LanguageSet) string {
	lines := make([]string, 0, len(set.Options()))
	for i, code := range set.Options() {
		name := code
		if tag, err := language.Parse(code); err == nil {
			if n := display.Self.Name(tag); n != "" {
				name = n
			}
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, name))
	}
	return strings.Join(lines, "\n")
}

func msg(ns, key string) runtime.Message {
	return runtime.Message{Namespace: ns, Key: key}
}

// Table builds the wallet menu.
func Table(cfg Config) runtime.Table {
	cfg = cfg.withDefaults()

	languageOptions := func(domain.View) map[string]any {
		return map[string]any{"options": LanguageMenu(cfg.Languages)}
	}
	storePIN := func(sess domain.Session, input string) domain.Session {
		ref, _ := sess.Data[runtime.DataAccountRef].(string)
		sess.Data[KeyPINHash] = HashPIN(ref, input)
		return sess
	}
	storeAmount := runtime.StoreWith(KeyAmount, func(input string) any {
		f, _ := guard.ParseAmount(input)
		return f
	})
	pinLength := func(domain.View) map[string]any {
		return map[string]any{"pin_length": cfg.PINLength}
	}
	back := runtime.Clear(KeyPINHash, runtime.DataErrorCode)

	return runtime.Table{
		Entry:       StateLanguage,
		Invalid:     msg("helpers", "invalid"),
		RetryLimit:  msg("helpers", "too_many_attempts"),
		SystemError: msg("helpers", "system_error"),
		States: map[domain.StateID]runtime.StateDef{
			StateLanguage: {
				Message: msg("main", "language"),
				Values:  languageOptions,
				Transitions: []runtime.Transition{
					{Name: "select_language", Guards: []guard.Guard{guard.Language(cfg.Languages)}, Effect: runtime.CommitLanguage(cfg.Languages), To: StateMenu},
				},
			},
			StateMenu: {
				Message: msg("main", "menu"),
				Transitions: []runtime.Transition{
					{Name: "balance", Guards: []guard.Guard{guard.OneOf("1")}, To: StateBalancePIN},
					{Name: "send", Guards: []guard.Guard{guard.OneOf("2")}, Effect: runtime.Clear(KeyRecipient, KeyAmount, KeyPINHash), To: StateSendRecipient},
					{Name: "settings", Guards: []guard.Guard{guard.OneOf("3")}, To: StateSettings},
					{Name: "feedback", Guards: []guard.Guard{guard.OneOf("4")}, To: StateFeedback},
					{Name: "exit", Guards: []guard.Guard{guard.OneOf("0")}, To: StateGoodbye},
				},
			},
			StateBalancePIN: {
				Message:   msg("main", "balance_pin"),
				Values:    pinLength,
				Sensitive: true,
				TTL:       cfg.PINTTL,
				Transitions: []runtime.Transition{
					{
						Name:      "check_balance",
						Guards:    []guard.Guard{guard.PIN(cfg.PINLength)},
						Effect:    storePIN,
						Invoke:    balanceInvoke(),
						To:        StateBalance,
						OnFailure: StateWalletError,
					},
				},
			},
			StateBalance: {Message: msg("main", "balance"), Terminal: true},
			StateSendRecipient: {
				Message: msg("main", "send_recipient"),
				Transitions: []runtime.Transition{
					{
						Name:   "recipient",
						Guards: []guard.Guard{guard.Phone(), guard.DataNotEqual(runtime.DataAccountRef)},
						Effect: runtime.Store(KeyRecipient),
						To:     StateSendAmount,
					},
				},
			},
			StateSendAmount: {
				Message: msg("main", "send_amount"),
				Transitions: []runtime.Transition{
					{Name: "amount", Guards: []guard.Guard{guard.Amount(cfg.MinAmount, cfg.MaxAmount)}, Effect: storeAmount, To: StateSendPIN},
				},
			},
			StateSendPIN: {
				Message:   msg("main", "send_pin"),
				Values:    pinLength,
				Sensitive: true,
				TTL:       cfg.PINTTL,
				Transitions: []runtime.Transition{
					{Name: "pin", Guards: []guard.Guard{guard.PIN(cfg.PINLength)}, Effect: storePIN, To: StateSendConfirm},
				},
			},
			StateSendConfirm: {
				Message: msg("main", "send_confirm"),
				TTL:     cfg.PINTTL,
				Transitions: []runtime.Transition{
					{
						Name:      "confirm",
						Guards:    []guard.Guard{guard.OneOf("1")},
						Invoke:    transferInvoke(),
						To:        StateSendDone,
						OnFailure: StateWalletError,
					},
					{Name: "cancel", Guards: []guard.Guard{guard.OneOf("2")}, Effect: runtime.Clear(KeyPINHash), To: StateCancelled},
				},
			},
			StateSendDone:  {Message: msg("main", "send_done"), Select: transferDoneMessage, Terminal: true},
			StateCancelled: {Message: msg("main", "cancelled"), Terminal: true},
			StateWalletError: {
				Message: msg("helpers", "wallet_unavailable"),
				Select:  walletErrorMessage,
				Transitions: []runtime.Transition{
					{Name: "back", Guards: []guard.Guard{guard.OneOf("1")}, Effect: back, To: StateMenu},
					{Name: "exit", Guards: []guard.Guard{guard.OneOf("0")}, Effect: back, To: StateGoodbye},
				},
			},
			StateSettings: {
				Message: msg("settings", "settings"),
				Transitions: []runtime.Transition{
					{Name: "change_language", Guards: []guard.Guard{guard.OneOf("1")}, To: StateSettingsLanguage},
					{Name: "back", Guards: []guard.Guard{guard.OneOf("0")}, To: StateMenu},
				},
			},
			StateSettingsLanguage: {
				Message: msg("settings", "settings_language"),
				Values:  languageOptions,
				Transitions: []runtime.Transition{
					{Name: "change_language", Guards: []guard.Guard{guard.Language(cfg.Languages)}, Effect: runtime.CommitLanguage(cfg.Languages), To: StateSettingsSaved},
				},
			},
			StateSettingsSaved: {
				Message: msg("settings", "settings_saved"),
				Transitions: []runtime.Transition{
					{Name: "back", Guards: []guard.Guard{guard.OneOf("1")}, To: StateMenu},
					{Name: "exit", Guards: []guard.Guard{guard.OneOf("0")}, To: StateGoodbye},
				},
			},
			StateFeedback: {
				Message: msg("feedback", "feedback"),
				Values: func(domain.View) map[string]any {
					return map[string]any{"feedback_max": cfg.FeedbackMax}
				},
				Transitions: []runtime.Transition{
					{Name: "submit", Guards: []guard.Guard{guard.Text(1, cfg.FeedbackMax)}, Effect: runtime.Store(KeyFeedback), To: StateFeedbackThanks},
				},
			},
			StateFeedbackThanks: {Message: msg("feedback", "feedback_thanks"), Terminal: true},
			StateGoodbye:        {Message: msg("helpers", "goodbye"), Terminal: true},
		},
	}
}

// walletErrorMessage explains the stored backend error code.
func walletErrorMessage(v domain.View) runtime.Message {
	switch v.GetString(runtime.DataErrorCode) {
	case domain.WalletErrInsufficientFunds:
		return msg("helpers", "wallet_insufficient_funds")
	case domain.WalletErrInvalidPIN:
		return msg("helpers", "wallet_invalid_pin")
	case domain.WalletErrUnknownRecipient:
		return msg("helpers", "wallet_unknown_recipient")
	default:
		return msg("helpers", "wallet_unavailable")
	}
}

type balanceResult struct {
	Balance float64 `mapstructure:"balance"`
}

// transferResult fields are optional: a backend may confirm a transfer without them.
type transferResult struct {
	Reference *string  `mapstructure:"reference"`
	Balance   *float64 `mapstructure:"balance"`
}

// decode maps a loosely typed backend result onto out, accepting numeric strings.
func decode(result map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return err
	}
	return dec.Decode(result)
}

func balanceInvoke() *runtime.Invoke {
	return &runtime.Invoke{
		Operation: domain.WalletBalance,
		Request: func(v domain.View) domain.WalletRequest {
			return domain.WalletRequest{
				AccountRef: v.GetString(runtime.DataAccountRef),
				PINHash:    v.GetString(KeyPINHash),
			}
		},
		Apply: func(sess domain.Session, result map[string]any) (domain.Session, error) {
			var res balanceResult
			if err := decode(result, &res); err != nil {
				return sess, fmt.Errorf("decode balance result: %w", err)
			}
			if _, ok := result[KeyBalance]; !ok {
				return sess, fmt.Errorf("balance result has no %q", KeyBalance)
			}
			return sess.WithoutData(KeyPINHash).WithData(KeyBalance, res.Balance), nil
		},
	}
}

func transferInvoke() *runtime.Invoke {
	return &runtime.Invoke{
		Operation: domain.WalletTransfer,
		Request: func(v domain.View) domain.WalletRequest {
			amount, _ := v.Get(KeyAmount)
			req := domain.WalletRequest{
				AccountRef: v.GetString(runtime.DataAccountRef),
				Recipient:  v.GetString(KeyRecipient),
				PINHash:    v.GetString(KeyPINHash),
			}
			if f, ok := amount.(float64); ok {
				req.Amount = &f
			}
			return req
		},
		Apply: func(sess domain.Session, result map[string]any) (domain.Session, error) {
			var res transferResult
			if err := decode(result, &res); err != nil {
				return sess, fmt.Errorf("decode transfer result: %w", err)
			}
			next := sess.WithoutData(KeyPINHash, KeyReference, KeyBalance)
			if res.Reference != nil && strings.TrimSpace(*res.Reference) != "" {
				next = next.WithData(KeyReference, strings.TrimSpace(*res.Reference))
			}
			if res.Balance != nil {
				next = next.WithData(KeyBalance, *res.Balance)
			}
			return next, nil
		},
		Notify:       msg("sms", "transfer_receipt"),
		SelectNotify: transferReceiptMessage,
	}
}

// transferDoneMessage drops the reference and balance lines the backend did not confirm.
func transferDoneMessage(v domain.View) runtime.Message {
	_, hasRef := v.Get(KeyReference)
	_, hasBalance := v.Get(KeyBalance)
	switch {
	case hasRef && hasBalance:
		return msg("main", "send_done")
	case hasRef:
		return msg("main", "send_done_no_balance")
	case hasBalance:
		return msg("main", "send_done_no_ref")
	default:
		return msg("main", "send_done_plain")
	}
}

func transferReceiptMessage(v domain.View) runtime.Message {
	_, hasRef := v.Get(KeyReference)
	_, hasBalance := v.Get(KeyBalance)
	if hasRef && hasBalance {
		return msg("sms", "transfer_receipt")
	}
	return msg("sms", "transfer_receipt_plain")
}
