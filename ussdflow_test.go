package ussdflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/ussdflow"
	"github.com/aretw0/ussdflow/internal/flows"
	"github.com/aretw0/ussdflow/pkg/adapters/memory"
	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	caller    = "+254700000001"
	recipient = "0712345678"
	pin       = "1234"
)

type harness struct {
	t      *testing.T
	svc    *ussdflow.Service
	wallet *memory.Wallet
	outbox *memory.Outbox
}

func newHarness(t *testing.T, balance float64, opts ...ussdflow.Option) *harness {
	w := memory.NewWallet()
	w.Open(caller, balance, flows.HashPIN(caller, pin))
	w.Open(recipient, 0, "")
	outbox := memory.NewOutbox()

	svc, err := ussdflow.New(append([]ussdflow.Option{
		ussdflow.WithWallet(w),
		ussdflow.WithNotifier(outbox),
	}, opts...)...)
	require.NoError(t, err)
	return &harness{t: t, svc: svc, wallet: w, outbox: outbox}
}

func (h *harness) turn(sessionID, raw string) domain.Reply {
	h.t.Helper()
	reply, err := h.svc.Handle(context.Background(), domain.Turn{SessionID: sessionID, RawInput: raw, Phone: caller})
	require.NoError(h.t, err)
	return reply
}

func TestService_FirstDialShowsLanguageMenu(t *testing.T) {
	h := newHarness(t, 0)

	reply := h.turn("s1", "")
	assert.True(t, reply.Continue)
	assert.Contains(t, reply.Text, "1. English")
	assert.Contains(t, reply.Text, "2. ")
}

func TestService_SelectEnglish(t *testing.T) {
	h := newHarness(t, 0)
	h.turn("s1", "")

	reply := h.turn("s1", "1")
	assert.Equal(t, domain.Reply{
		Text:     "Main menu\n1. Check balance\n2. Send money\n3. Settings\n4. Feedback\n0. Exit",
		Continue: true,
	}, reply)
}

func TestService_InvalidMenuOption(t *testing.T) {
	h := newHarness(t, 0)
	h.turn("s1", "1")

	reply := h.turn("s1", "1*9")
	assert.True(t, reply.Continue)
	assert.Equal(t, "Invalid choice. 2 attempt(s) left.\nMain menu\n1. Check balance\n2. Send money\n3. Settings\n4. Feedback\n0. Exit", reply.Text)

	sess, err := h.svc.Sessions().Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, flows.StateMenu, sess.State)
	assert.Equal(t, 1, sess.Retries)
}

func TestService_RetryLimit(t *testing.T) {
	h := newHarness(t, 0, ussdflow.WithMaxRetries(2))
	h.turn("s1", "1")
	h.turn("s1", "1*9")
	h.turn("s1", "1*9*9")

	reply := h.turn("s1", "1*9*9*1")
	assert.Equal(t, domain.Reply{Text: "Too many invalid attempts. Please dial again.", Continue: false}, reply)
}

func TestService_CheckBalance(t *testing.T) {
	h := newHarness(t, 1234.5)
	h.turn("s1", "1")
	h.turn("s1", "1*1")

	reply := h.turn("s1", "1*1*"+pin)
	assert.Equal(t, domain.Reply{Text: "Your balance is KES 1234.50.", Continue: false}, reply)
}

func TestService_WrongPIN(t *testing.T) {
	h := newHarness(t, 1234.5)
	h.turn("s1", "1")
	h.turn("s1", "1*1")

	reply := h.turn("s1", "1*1*9999")
	assert.True(t, reply.Continue)
	assert.Equal(t, "Wrong PIN.\n1. Main menu\n0. Exit", reply.Text)

	reply = h.turn("s1", "1*1*9999*1")
	assert.Contains(t, reply.Text, "Main menu")

	sess, err := h.svc.Sessions().Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.NotContains(t, sess.Data, flows.KeyPINHash)
	assert.Contains(t, sess.History, domain.MaskedToken)
	assert.NotContains(t, sess.History, "9999")
}

func TestService_SendMoney(t *testing.T) {
	h := newHarness(t, 1000)
	inputs := []string{"", "1", "1*2", "1*2*" + recipient, "1*2*" + recipient + "*500", "1*2*" + recipient + "*500*" + pin}
	for _, raw := range inputs {
		require.True(t, h.turn("s1", raw).Continue, "input %q", raw)
	}

	sess, err := h.svc.Sessions().Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, flows.StateSendConfirm, sess.State)

	reply := h.turn("s1", "1*2*"+recipient+"*500*"+pin+"*1")
	assert.False(t, reply.Continue)
	assert.Contains(t, reply.Text, "Sent KES 500.00 to "+recipient)
	assert.Contains(t, reply.Text, "New balance KES 500.00")

	bal, _ := h.wallet.Balance(recipient)
	assert.Equal(t, 500.0, bal)

	msgs := h.outbox.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, caller, msgs[0].Phone)
	assert.Contains(t, msgs[0].Text, "071****678")
}

type walletFunc func(context.Context, domain.WalletRequest) (domain.WalletResponse, error)

func (f walletFunc) Do(ctx context.Context, req domain.WalletRequest) (domain.WalletResponse, error) {
	return f(ctx, req)
}

func TestService_SendMoneyWithoutResult(t *testing.T) {
	tests := []struct {
		name    string
		result  map[string]any
		screen  string
		receipt string
	}{
		{
			name:    "no result",
			screen:  "Sent KES 500.00 to " + recipient + ".",
			receipt: "You sent KES 500.00 to 071****678.",
		},
		{
			name:    "reference only",
			result:  map[string]any{"reference": "TX42"},
			screen:  "Sent KES 500.00 to " + recipient + ". Ref TX42.",
			receipt: "You sent KES 500.00 to 071****678.",
		},
		{
			name:    "balance only",
			result:  map[string]any{"balance": 12.5},
			screen:  "Sent KES 500.00 to " + recipient + ". New balance KES 12.50.",
			receipt: "You sent KES 500.00 to 071****678.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outbox := memory.NewOutbox()
			w := walletFunc(func(context.Context, domain.WalletRequest) (domain.WalletResponse, error) {
				return domain.WalletResponse{Ok: true, Result: tt.result}, nil
			})
			svc, err := ussdflow.New(ussdflow.WithWallet(w), ussdflow.WithNotifier(outbox))
			require.NoError(t, err)
			h := &harness{t: t, svc: svc, outbox: outbox}

			for _, raw := range []string{"1", "2", recipient, "500", pin} {
				require.True(t, h.turn("s1", raw).Continue, "input %q", raw)
			}

			reply := h.turn("s1", "1")
			assert.Equal(t, domain.Reply{Text: tt.screen, Continue: false}, reply)

			msgs := outbox.Messages()
			require.Len(t, msgs, 1)
			assert.Equal(t, tt.receipt, msgs[0].Text)
		})
	}
}

func TestService_InsufficientFundsIsRecoverable(t *testing.T) {
	h := newHarness(t, 100)
	for _, raw := range []string{"1", "2", recipient, "500", pin} {
		h.turn("s1", raw)
	}

	reply := h.turn("s1", "1")
	assert.Equal(t, domain.Reply{Text: "Insufficient funds.\n1. Main menu\n0. Exit", Continue: true}, reply)

	sess, err := h.svc.Sessions().Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, flows.StateWalletError, sess.State)
	assert.Equal(t, domain.WalletErrInsufficientFunds, sess.Data["error_code"])
	assert.Empty(t, h.outbox.Messages())
}

func TestService_CannotSendToSelf(t *testing.T) {
	h := newHarness(t, 100)
	h.turn("s1", "1")
	h.turn("s1", "2")

	reply := h.turn("s1", caller)
	assert.True(t, reply.Continue)
	assert.Contains(t, reply.Text, "Invalid choice.")
}

func TestNew_RejectsStateTTLForUnknownState(t *testing.T) {
	_, err := ussdflow.New(ussdflow.WithTTL(time.Minute, map[string]time.Duration{"send_cofirm": 30 * time.Second}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send_cofirm")
}

func TestService_KiswahiliSticksAndFallsBack(t *testing.T) {
	h := newHarness(t, 0)

	reply := h.turn("s1", "2")
	assert.Contains(t, reply.Text, "Menyu kuu")

	reply = h.turn("s1", "3")
	assert.Equal(t, "Mipangilio\n1. Badilisha lugha\n0. Rudi", reply.Text)

	reply = h.turn("s1", "0")
	assert.Contains(t, reply.Text, "Menyu kuu")
}

func TestService_ChangeLanguage(t *testing.T) {
	h := newHarness(t, 0)
	h.turn("s1", "2")
	h.turn("s1", "3")
	h.turn("s1", "1")

	reply := h.turn("s1", "1")
	assert.Equal(t, "Language updated.\n1. Main menu\n0. Exit", reply.Text)

	reply = h.turn("s1", "1")
	assert.Contains(t, reply.Text, "Main menu")
}

func TestService_FallbackSelectableIsIndependent(t *testing.T) {
	h := newHarness(t, 0, ussdflow.WithLanguages([]string{"sw"}, "en", false))
	assert.Equal(t, []string{"sw"}, h.svc.Languages().Options())
	reply := h.turn("s1", "2")
	assert.Contains(t, reply.Text, "Invalid")

	h = newHarness(t, 0, ussdflow.WithLanguages([]string{"sw"}, "en", true))
	assert.Equal(t, []string{"sw", "en"}, h.svc.Languages().Options())
	reply = h.turn("s1", "2")
	assert.Contains(t, reply.Text, "Main menu")
}

func TestService_Feedback(t *testing.T) {
	h := newHarness(t, 0)
	h.turn("s1", "1")

	reply := h.turn("s1", "4")
	assert.Equal(t, "Type your feedback (max 140 characters):", reply.Text)

	reply = h.turn("s1", "Great service")
	assert.Equal(t, domain.Reply{Text: "Thank you for your feedback!", Continue: false}, reply)
}

func TestNew_RejectsUnknownLanguage(t *testing.T) {
	_, err := ussdflow.New(ussdflow.WithLanguages([]string{"fr"}, "en", false))
	assert.Error(t, err)
}
