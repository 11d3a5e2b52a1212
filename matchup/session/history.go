package session

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wricardo/gridiron-odds/matchup/protocol"
	"github.com/wricardo/gridiron-odds/matchup/router"
	"github.com/wricardo/gridiron-odds/matchup/table"
)

// HistoryOpenOptions preselects the history view when it opens. Zero values
// fall back to the configured defaults.
type HistoryOpenOptions struct {
	Scope     protocol.Scope `json:"team,omitempty"`
	Season    int            `json:"season,omitempty"`
	AutoFetch bool           `json:"auto_fetch,omitempty"`
}

// HistorySnapshot is a copy of the history view state. Dataset is nil until
// a stream has completed.
type HistorySnapshot struct {
	Open            bool             `json:"open"`
	Scope           protocol.Scope   `json:"team"`
	Season          int              `json:"season"`
	DisplayedScope  protocol.Scope   `json:"displayed_team,omitempty"`
	DisplayedSeason int              `json:"displayed_season,omitempty"`
	Loading         bool             `json:"loading"`
	Dataset         *table.Dataset   `json:"dataset,omitempty"`
	Sort            *table.SortState `json:"sort,omitempty"`
	RequestID       string           `json:"request_id,omitempty"`
	// ReceivedRows counts streamed rows not yet visible in Dataset.
	ReceivedRows int `json:"received_rows,omitempty"`
}

// HistoryView streams historical game tables and sorts them.
type HistoryView struct {
	deps     Deps
	logger   *zap.Logger
	onChange func()

	mu              sync.Mutex
	open            bool
	sub             *router.Subscription
	scope           protocol.Scope
	season          int
	displayedScope  protocol.Scope
	displayedSeason int
	loading         bool
	asm             *table.Assembler
	dataset         *table.Dataset
	sort            *table.SortState
	requestID       string
	changed         chan struct{}
}

// NewHistoryView creates a closed history view. onChange may be nil.
func NewHistoryView(deps Deps, onChange func()) *HistoryView {
	deps = deps.withDefaults()
	return &HistoryView{
		deps:     deps,
		logger:   deps.Logger.Named("history"),
		onChange: onChange,
		scope:    deps.DefaultScope,
		season:   deps.DefaultSeason,
		asm:      table.NewAssembler(),
		changed:  make(chan struct{}),
	}
}

// Open shows the view with the given selection and starts listening for
// table frames. With AutoFetch the selection is fetched right away.
func (v *HistoryView) Open(opts HistoryOpenOptions) error {
	v.mu.Lock()
	if !v.open {
		v.open = true
		if v.deps.Router != nil {
			v.sub = v.deps.Router.Subscribe(v.handle,
				protocol.LabelHeaders, protocol.LabelChunk, protocol.LabelLastChunk)
		}
	}
	if opts.Scope != "" {
		v.scope = normalizeScope(opts.Scope)
	}
	if opts.Season != 0 {
		v.season = opts.Season
	}
	v.notifyLocked()
	v.mu.Unlock()
	v.fire()

	if opts.AutoFetch {
		return v.Fetch()
	}
	return nil
}

// Select changes the pending selection without fetching.
func (v *HistoryView) Select(scope protocol.Scope, season int) error {
	v.mu.Lock()
	if !v.open {
		v.mu.Unlock()
		return ErrViewClosed
	}
	if scope != "" {
		v.scope = normalizeScope(scope)
	}
	if season != 0 {
		v.season = season
	}
	v.notifyLocked()
	v.mu.Unlock()
	v.fire()
	return nil
}

// Fetch issues a table query for the current selection.
func (v *HistoryView) Fetch() error {
	v.mu.Lock()
	scope, season := v.scope, v.season
	v.mu.Unlock()
	return v.Issue(scope, season)
}

// Issue validates and sends a table query. The previous table and sort are
// discarded; the new table becomes visible only when its last chunk arrives.
func (v *HistoryView) Issue(scope protocol.Scope, season int) error {
	v.mu.Lock()
	if !v.open || v.sub == nil {
		v.mu.Unlock()
		return ErrViewClosed
	}
	if !v.deps.connected() {
		v.mu.Unlock()
		return ErrNotConnected
	}
	if v.loading {
		v.mu.Unlock()
		return ErrRequestInFlight
	}

	scope, err := validateTableQuery(v.deps.Catalog, normalizeScope(scope), season, v.deps.Now().Year())
	if err != nil {
		v.mu.Unlock()
		v.deps.Metrics.ValidationRejected("history")
		return err
	}

	id := v.deps.NewID()
	v.scope, v.season = scope, season
	v.loading = true
	v.dataset = nil
	v.sort = nil
	v.asm.Reset()
	v.displayedScope, v.displayedSeason = scope, season
	v.requestID = id
	v.sub.Expect(id)

	req := protocol.TableQueryRequest{RequestID: id, Scope: scope, Season: season}
	if err := v.deps.send(req); err != nil {
		v.loading = false
		v.requestID = ""
		v.notifyLocked()
		v.mu.Unlock()
		v.fire()
		return err
	}

	v.logger.Debug("table requested",
		zap.String("request_id", id), zap.String("query", req.Query()))
	v.notifyLocked()
	v.mu.Unlock()
	v.fire()
	return nil
}

func (v *HistoryView) handle(f protocol.Frame) {
	v.mu.Lock()
	if !v.loading {
		v.mu.Unlock()
		v.logger.Debug("dropping table frame with no request in flight",
			zap.String("label", string(f.Label())))
		return
	}

	switch f := f.(type) {
	case protocol.Headers:
		v.asm.SetHeaders(f.Columns)
		v.mu.Unlock()
		return
	case protocol.Chunk:
		if !f.Final {
			v.asm.Append(f.Rows)
			v.mu.Unlock()
			return
		}
		ds := v.asm.Finish(f.Rows)
		v.dataset = &ds
		v.loading = false
		v.logger.Debug("table complete",
			zap.String("request_id", v.requestID), zap.Int("rows", ds.Len()))
	default:
		v.mu.Unlock()
		return
	}
	v.notifyLocked()
	v.mu.Unlock()
	v.fire()
}

// Sort orders the loaded table by column, toggling direction on repeated
// calls for the same column.
func (v *HistoryView) Sort(column int) (HistorySnapshot, error) {
	v.mu.Lock()
	if v.dataset == nil {
		v.mu.Unlock()
		return v.Snapshot(), ErrNoDataset
	}
	sorted, state, err := table.Sort(*v.dataset, v.sort, column)
	if err != nil {
		s := v.snapshotLocked()
		v.mu.Unlock()
		return s, err
	}
	v.dataset = &sorted
	v.sort = state
	v.notifyLocked()
	s := v.snapshotLocked()
	v.mu.Unlock()
	v.fire()
	return s, nil
}

// Close hides the view and resets it to its defaults, abandoning any stream
// in progress. Frames still arriving for it are dropped.
func (v *HistoryView) Close() {
	v.mu.Lock()
	sub := v.sub
	v.sub = nil
	v.open = false
	v.scope = v.deps.DefaultScope
	v.season = v.deps.DefaultSeason
	v.displayedScope = ""
	v.displayedSeason = 0
	v.loading = false
	v.dataset = nil
	v.sort = nil
	v.asm.Reset()
	v.requestID = ""
	v.notifyLocked()
	v.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	v.fire()
}

// Snapshot returns a copy of the current state.
func (v *HistoryView) Snapshot() HistorySnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *HistoryView) snapshotLocked() HistorySnapshot {
	s := HistorySnapshot{
		Open:            v.open,
		Scope:           v.scope,
		Season:          v.season,
		DisplayedScope:  v.displayedScope,
		DisplayedSeason: v.displayedSeason,
		Loading:         v.loading,
		RequestID:       v.requestID,
		ReceivedRows:    v.asm.Pending(),
	}
	if v.dataset != nil {
		ds := v.dataset.Clone()
		s.Dataset = &ds
	}
	if v.sort != nil {
		st := *v.sort
		s.Sort = &st
	}
	return s
}

// Loading reports whether a stream is in progress.
func (v *HistoryView) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

// Wait blocks until no stream is in progress or ctx ends.
func (v *HistoryView) Wait(ctx context.Context) (HistorySnapshot, error) {
	for {
		v.mu.Lock()
		if !v.loading {
			s := v.snapshotLocked()
			v.mu.Unlock()
			return s, nil
		}
		ch := v.changed
		v.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return v.Snapshot(), ctx.Err()
		}
	}
}

func (v *HistoryView) notifyLocked() {
	close(v.changed)
	v.changed = make(chan struct{})
}

func (v *HistoryView) fire() {
	if v.onChange != nil {
		v.onChange()
	}
}

func normalizeScope(s protocol.Scope) protocol.Scope {
	return protocol.Scope(strings.ToUpper(strings.TrimSpace(string(s))))
}
