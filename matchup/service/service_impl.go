package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wricardo/gridiron-odds/matchup/protocol"
	"github.com/wricardo/gridiron-odds/matchup/session"
	"github.com/wricardo/gridiron-odds/matchup/teams"
)

// matchupServiceImpl implements the MatchupService interface
type matchupServiceImpl struct {
	pages   PageManager
	conn    Connection
	catalog *teams.Catalog
	backend string
	logger  *zap.Logger
}

// Options configures the service.
type Options struct {
	Catalog *teams.Catalog
	// Backend is reported by Status.
	Backend string
	Logger  *zap.Logger
}

// NewMatchupService creates a new service instance
func NewMatchupService(pages PageManager, conn Connection, opts Options) MatchupService {
	if opts.Catalog == nil {
		opts.Catalog = teams.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &matchupServiceImpl{
		pages:   pages,
		conn:    conn,
		catalog: opts.Catalog,
		backend: opts.Backend,
		logger:  opts.Logger,
	}
}

// Status reports the backend connection state
func (s *matchupServiceImpl) Status(ctx context.Context) ConnectionStatus {
	if s.conn == nil {
		return ConnectionStatus{State: "closed", Backend: s.backend}
	}
	return ConnectionStatus{
		State:     s.conn.State().String(),
		Connected: s.conn.Connected(),
		Backend:   s.backend,
	}
}

// ListTeams returns the catalog ordered by code
func (s *matchupServiceImpl) ListTeams(ctx context.Context) []teams.Team {
	return s.catalog.All()
}

// CreatePage creates a page; an empty id gets a generated one
func (s *matchupServiceImpl) CreatePage(ctx context.Context, pageID string) (*PageState, error) {
	page, err := s.pages.Create(pageID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("page created", zap.String("page_id", page.ID))
	return pageState(page), nil
}

// GetPage returns both views of a page
func (s *matchupServiceImpl) GetPage(ctx context.Context, pageID string) (*PageState, error) {
	page, err := s.pages.Get(pageID)
	if err != nil {
		return nil, err
	}
	return pageState(page), nil
}

// ListPages lists every page
func (s *matchupServiceImpl) ListPages(ctx context.Context) []session.PageInfo {
	return s.pages.List()
}

// DeletePage removes a page and abandons its requests
func (s *matchupServiceImpl) DeletePage(ctx context.Context, pageID string) error {
	if err := s.pages.Delete(pageID); err != nil {
		return err
	}
	s.logger.Info("page deleted", zap.String("page_id", pageID))
	return nil
}

// Predict issues a prediction and returns the loading snapshot
func (s *matchupServiceImpl) Predict(ctx context.Context, pageID string, q session.PredictionQuery) (*session.PredictionSnapshot, error) {
	page, err := s.pages.Get(pageID)
	if err != nil {
		return nil, err
	}
	if err := page.Prediction.Issue(q); err != nil {
		return nil, err
	}
	snap := page.Prediction.Snapshot()
	return &snap, nil
}

// PredictAndWait issues a prediction and waits for its outcome
func (s *matchupServiceImpl) PredictAndWait(ctx context.Context, pageID string, q session.PredictionQuery) (*session.PredictionSnapshot, error) {
	page, err := s.pages.GetOrCreate(pageID)
	if err != nil {
		return nil, err
	}
	if err := page.Prediction.Issue(q); err != nil {
		return nil, err
	}
	snap, err := page.Prediction.Wait(ctx)
	if err != nil {
		return &snap, fmt.Errorf("prediction did not complete: %w", err)
	}
	return &snap, nil
}

// Prediction returns the prediction view state
func (s *matchupServiceImpl) Prediction(ctx context.Context, pageID string) (*session.PredictionSnapshot, error) {
	page, err := s.pages.Get(pageID)
	if err != nil {
		return nil, err
	}
	snap := page.Prediction.Snapshot()
	return &snap, nil
}

// ResetPrediction clears the prediction view
func (s *matchupServiceImpl) ResetPrediction(ctx context.Context, pageID string) error {
	page, err := s.pages.Get(pageID)
	if err != nil {
		return err
	}
	page.Prediction.Reset()
	return nil
}

// OpenHistory opens the history view, optionally fetching right away
func (s *matchupServiceImpl) OpenHistory(ctx context.Context, pageID string, opts session.HistoryOpenOptions) (*session.HistorySnapshot, error) {
	page, err := s.pages.Get(pageID)
	if err != nil {
		return nil, err
	}
	if err := page.History.Open(opts); err != nil {
		return nil, err
	}
	snap := page.History.Snapshot()
	return &snap, nil
}

// FetchHistory issues a table query. Zero arguments keep the current
// selection; a closed view is opened first.
func (s *matchupServiceImpl) FetchHistory(ctx context.Context, pageID string, scope protocol.Scope, season int) (*session.HistorySnapshot, error) {
	page, err := s.pages.Get(pageID)
	if err != nil {
		return nil, err
	}
	if err := s.issueHistory(page, scope, season); err != nil {
		return nil, err
	}
	snap := page.History.Snapshot()
	return &snap, nil
}

// FetchHistoryAndWait fetches a table, waits for the stream to finish, then
// applies the requested sort and row limit
func (s *matchupServiceImpl) FetchHistoryAndWait(ctx context.Context, pageID string, q HistoryQuery) (*session.HistorySnapshot, error) {
	page, err := s.pages.GetOrCreate(pageID)
	if err != nil {
		return nil, err
	}
	if err := s.issueHistory(page, q.Scope, q.Season); err != nil {
		return nil, err
	}

	snap, err := page.History.Wait(ctx)
	if err != nil {
		return &snap, fmt.Errorf("history did not complete: %w", err)
	}

	if q.SortColumn != nil {
		if snap, err = page.History.Sort(*q.SortColumn); err != nil {
			return &snap, err
		}
		if q.Descending {
			if snap, err = page.History.Sort(*q.SortColumn); err != nil {
				return &snap, err
			}
		}
	}

	limitRows(&snap, q.Limit)
	return &snap, nil
}

// SortHistory sorts the loaded table
func (s *matchupServiceImpl) SortHistory(ctx context.Context, pageID string, column int) (*session.HistorySnapshot, error) {
	page, err := s.pages.Get(pageID)
	if err != nil {
		return nil, err
	}
	snap, err := page.History.Sort(column)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// History returns the history view state
func (s *matchupServiceImpl) History(ctx context.Context, pageID string) (*session.HistorySnapshot, error) {
	page, err := s.pages.Get(pageID)
	if err != nil {
		return nil, err
	}
	snap := page.History.Snapshot()
	return &snap, nil
}

// CloseHistory closes and resets the history view
func (s *matchupServiceImpl) CloseHistory(ctx context.Context, pageID string) error {
	page, err := s.pages.Get(pageID)
	if err != nil {
		return err
	}
	page.History.Close()
	return nil
}

func (s *matchupServiceImpl) issueHistory(page *session.Page, scope protocol.Scope, season int) error {
	current := page.History.Snapshot()
	if !current.Open {
		if err := page.History.Open(session.HistoryOpenOptions{}); err != nil {
			return err
		}
		current = page.History.Snapshot()
	}
	if scope == "" {
		scope = current.Scope
	}
	if season == 0 {
		season = current.Season
	}
	return page.History.Issue(scope, season)
}

func pageState(page *session.Page) *PageState {
	return &PageState{
		ID:         page.ID,
		Prediction: page.Prediction.Snapshot(),
		History:    page.History.Snapshot(),
	}
}

func limitRows(snap *session.HistorySnapshot, n int) {
	if snap.Dataset == nil || n <= 0 {
		return
	}
	limited := snap.Dataset.Limit(n)
	snap.Dataset = &limited
}
