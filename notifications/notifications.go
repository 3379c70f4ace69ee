package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/containrrr/shoutrrr"
	shoutrrrtypes "github.com/containrrr/shoutrrr/pkg/types"
)

var (
	ErrInvalidURI   = errors.New("invalid URI")
	ErrUnknownEvent = errors.New("unknown event")
)

type Event string

const (
	Complete Event = "complete"
	Errors   Event = "errors"
)

func (e Event) IsValid() bool {
	switch e {
	case Complete, Errors:
		return true
	}
	return false
}

type Notifications struct {
	mappings map[Event][]string
}

func (n *Notifications) AddURI(event Event, uri string) error {
	if n.mappings == nil {
		n.mappings = map[Event][]string{}
	}
	if !event.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	n.mappings[event] = append(n.mappings[event], uri)
	return nil
}

func (n *Notifications) IterMappings(f func(Event, string)) {
	for event, uris := range n.mappings {
		for _, uri := range uris {
			f(event, uri)
		}
	}
}

func (n *Notifications) Sendf(ctx context.Context, event Event, f string, a ...any) {
	n.Send(ctx, event, fmt.Sprintf(f, a...))
}

// Send a plain message to every URI registered for event. Failures are only logged.
// shoutrrr's own output, including the logger:// service, goes to the default slog logger.
func (n *Notifications) Send(ctx context.Context, event Event, message string) {
	if n == nil {
		return
	}
	uris := n.mappings[event]
	if len(uris) == 0 {
		return
	}

	logger := slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo)
	sender, err := shoutrrr.NewSender(logger, uris...)
	if err != nil {
		slog.ErrorContext(ctx, "create sender", "err", err)
		return
	}

	params := &shoutrrrtypes.Params{}
	params.SetTitle("flacr")

	if err := errors.Join(sender.Send(message, params)...); err != nil {
		slog.ErrorContext(ctx, "sending notifications", "err", err)
		return
	}
}
