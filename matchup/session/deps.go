package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wricardo/gridiron-odds/matchup/protocol"
	"github.com/wricardo/gridiron-odds/matchup/router"
	"github.com/wricardo/gridiron-odds/matchup/teams"
	"github.com/wricardo/gridiron-odds/metrics"
)

var (
	ErrNotConnected    = errors.New("not connected to the backend")
	ErrRequestInFlight = errors.New("a request is already in flight")
	ErrNoDataset       = errors.New("no dataset loaded")
	ErrViewClosed      = errors.New("view is closed")
)

// DefaultSeason is the season the history view starts on.
const DefaultSeason = 2023

// Sender is the outbound half of the backend connection.
type Sender interface {
	Send(protocol.Request) error
	Connected() bool
}

// Subscriber registers frame handlers.
type Subscriber interface {
	Subscribe(h router.Handler, labels ...protocol.Label) *router.Subscription
}

// Deps are the collaborators shared by every view.
type Deps struct {
	Sender  Sender
	Router  Subscriber
	Catalog *teams.Catalog
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	DefaultScope  protocol.Scope
	DefaultSeason int

	// NewID stamps outbound requests. Defaults to random UUIDs.
	NewID func() string
	// Now supplies the current year for season validation.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Catalog == nil {
		d.Catalog = teams.Default()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.DefaultScope == "" {
		d.DefaultScope = protocol.ScopeAll
	}
	if d.DefaultSeason == 0 {
		d.DefaultSeason = DefaultSeason
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

func (d Deps) connected() bool {
	return d.Sender != nil && d.Sender.Connected()
}

// send checks the connection and writes r.
func (d Deps) send(r protocol.Request) error {
	if !d.connected() {
		return ErrNotConnected
	}
	if err := d.Sender.Send(r); err != nil {
		return fmt.Errorf("failed to send %s request: %w", r.Action(), err)
	}
	return nil
}
