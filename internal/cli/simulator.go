package cli

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/aretw0/ussdflow/internal/presentation/tui"
	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/google/uuid"
)

// Handler processes one turn. *ussdflow.Service satisfies it.
type Handler interface {
	Handle(ctx context.Context, turn domain.Turn) (domain.Reply, error)
}

// Simulator drives the flow from a terminal the way a gateway would.
type Simulator struct {
	Handler Handler
	Screen  *tui.Screen
	In      io.Reader
	Phone   string

	// Accumulate resends every token of the session joined by "*".
	Accumulate bool

	// NewSessionID defaults to random UUIDs.
	NewSessionID func() string
}

const (
	cmdQuit = ":q"
	cmdNew  = ":new"
)

// Run dials sessions until input ends, ctx is done or the user types :q.
func (s *Simulator) Run(ctx context.Context) error {
	newID := s.NewSessionID
	if newID == nil {
		newID = uuid.NewString
	}
	scanner := bufio.NewScanner(s.In)

	for ctx.Err() == nil {
		id := newID()
		s.Screen.Info("dial session %s as %s (%s to hang up, %s to quit)", id, s.Phone, cmdNew, cmdQuit)

		var tokens []string
		reply := s.turn(ctx, id, "")

		for reply.Continue {
			s.Screen.Prompt()
			if !scanner.Scan() {
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			switch line {
			case cmdQuit:
				return nil
			case cmdNew:
				reply = domain.Reply{}
				continue
			}

			tokens = append(tokens, line)
			raw := line
			if s.Accumulate {
				raw = strings.Join(tokens, domain.InputSeparator)
			}
			reply = s.turn(ctx, id, raw)
		}

		s.Screen.Info("session closed; press enter to dial again")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if strings.TrimSpace(scanner.Text()) == cmdQuit {
			return nil
		}
	}
	return ctx.Err()
}

func (s *Simulator) turn(ctx context.Context, id, raw string) domain.Reply {
	reply, err := s.Handler.Handle(ctx, domain.Turn{SessionID: id, RawInput: raw, Phone: s.Phone})
	s.Screen.Reply(reply)
	if err != nil {
		s.Screen.Error(err)
	}
	return reply
}
