package runtime

import (
	"strings"

	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/aretw0/ussdflow/pkg/guard"
)

// CommitLanguage writes the selected language into the session.
// It is the only writer of Session.Language.
func CommitLanguage(set guard.LanguageSet) Effect {
	return func(sess domain.Session, input string) domain.Session {
		if code, ok := set.Resolve(input); ok {
			sess.Language = code
		}
		return sess
	}
}

// Store saves the trimmed token under key.
func Store(key string) Effect {
	return func(sess domain.Session, input string) domain.Session {
		sess.Data[key] = strings.TrimSpace(input)
		return sess
	}
}

// StoreWith saves fn(token) under key.
func StoreWith(key string, fn func(input string) any) Effect {
	return func(sess domain.Session, input string) domain.Session {
		sess.Data[key] = fn(strings.TrimSpace(input))
		return sess
	}
}

// Clear removes keys from the session data.
func Clear(keys ...string) Effect {
	return func(sess domain.Session, _ string) domain.Session {
		for _, k := range keys {
			delete(sess.Data, k)
		}
		return sess
	}
}

// Chain applies effects in order.
func Chain(effects ...Effect) Effect {
	return func(sess domain.Session, input string) domain.Session {
		for _, fx := range effects {
			if fx != nil {
				sess = fx(sess, input)
			}
		}
		return sess
	}
}
