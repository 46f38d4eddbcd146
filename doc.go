/*
Package ussdflow runs multi-turn USSD menu sessions: a table-driven state machine
with guarded transitions, a localized template catalog and a formatter registry.

# Concept

A USSD gateway calls the service once per turn with a session ID and the
subscriber's input. The service loads the session, evaluates the transitions
declared for its current state, applies the chosen transition's effect, renders
the prompt of the next state in the session's language and persists the result.
The gateway receives the text plus a continue flag and owns the protocol framing
(CON/END).

  - Guards are pure predicates over a read-only view of the session.
  - Effects are the only writers of session data; they receive a copy.
  - Invalid input re-renders the current prompt with an error line and consumes
    one attempt of a bounded budget.
  - Missing templates fall back from the requested language to the configured
    fallback language and finally to the language-independent "und" layer.

# Usage

	svc, err := ussdflow.New(
		ussdflow.WithLanguages([]string{"en", "sw"}, "en", false),
		ussdflow.WithWallet(wallet.New("https://wallet.internal")),
	)
	if err != nil {
		log.Fatal(err)
	}

	reply, err := svc.Handle(ctx, domain.Turn{SessionID: "ATUid_1", RawInput: "", Phone: "+254700000001"})
	// reply.Text holds the language menu; reply.Continue is true.

See cmd/ussdflow for the HTTP gateway adapter and the interactive simulator.
*/
package ussdflow
