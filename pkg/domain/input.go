package domain

import "strings"

// InputSeparator joins the tokens of accumulated gateway input, e.g. "1*2*500".
const InputSeparator = "*"

// MaskedToken replaces sensitive tokens (PINs) in the stored history.
// It matches any token when history is compared with gateway input.
const MaskedToken = "****"

// ParseInput splits accumulated gateway input into its tokens.
// Empty input yields no tokens.
func ParseInput(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, InputSeparator)
}

// LatestToken resolves the token submitted in this turn.
//
// Gateways either resend the whole accumulated input or only the newest
// token. When the tokens extend the known history the first unseen token is
// returned; otherwise the last token of raw is taken as-is.
func LatestToken(raw string, history []string) string {
	tokens := ParseInput(raw)
	if len(tokens) == 0 {
		return ""
	}
	if len(tokens) > len(history) && hasPrefix(tokens, history) {
		return strings.TrimSpace(tokens[len(history)])
	}
	return strings.TrimSpace(tokens[len(tokens)-1])
}

// IsReplay reports whether raw resends exactly the accumulated history, as a
// gateway does when it retries a request whose response was lost.
//
// A single token is never a replay: last-token gateways send one token per
// turn, so "1" after a history of ["1"] is a new choice.
func IsReplay(raw string, history []string) bool {
	tokens := ParseInput(raw)
	return len(tokens) >= 2 && len(tokens) == len(history) && hasPrefix(tokens, history)
}

func hasPrefix(tokens, prefix []string) bool {
	for i, p := range prefix {
		if p != MaskedToken && tokens[i] != p {
			return false
		}
	}
	return true
}
