package service

import (
	"context"

	"github.com/wricardo/gridiron-odds/matchup/protocol"
	"github.com/wricardo/gridiron-odds/matchup/session"
	"github.com/wricardo/gridiron-odds/matchup/teams"
	"github.com/wricardo/gridiron-odds/transport/websocket"
)

// MatchupService defines every operation the client surfaces.
type MatchupService interface {
	// Connection and catalog
	Status(ctx context.Context) ConnectionStatus
	ListTeams(ctx context.Context) []teams.Team

	// Page management
	CreatePage(ctx context.Context, pageID string) (*PageState, error)
	GetPage(ctx context.Context, pageID string) (*PageState, error)
	ListPages(ctx context.Context) []session.PageInfo
	DeletePage(ctx context.Context, pageID string) error

	// Prediction view
	Predict(ctx context.Context, pageID string, q session.PredictionQuery) (*session.PredictionSnapshot, error)
	PredictAndWait(ctx context.Context, pageID string, q session.PredictionQuery) (*session.PredictionSnapshot, error)
	Prediction(ctx context.Context, pageID string) (*session.PredictionSnapshot, error)
	ResetPrediction(ctx context.Context, pageID string) error

	// History view
	OpenHistory(ctx context.Context, pageID string, opts session.HistoryOpenOptions) (*session.HistorySnapshot, error)
	FetchHistory(ctx context.Context, pageID string, scope protocol.Scope, season int) (*session.HistorySnapshot, error)
	FetchHistoryAndWait(ctx context.Context, pageID string, q HistoryQuery) (*session.HistorySnapshot, error)
	SortHistory(ctx context.Context, pageID string, column int) (*session.HistorySnapshot, error)
	History(ctx context.Context, pageID string) (*session.HistorySnapshot, error)
	CloseHistory(ctx context.Context, pageID string) error
}

// PageManager is the page storage the service drives.
type PageManager interface {
	Create(id string) (*session.Page, error)
	Get(id string) (*session.Page, error)
	GetOrCreate(id string) (*session.Page, error)
	List() []session.PageInfo
	Delete(id string) error
}

// Connection reports the backend connection state.
type Connection interface {
	State() websocket.State
	Connected() bool
}

// ConnectionStatus describes the backend connection.
type ConnectionStatus struct {
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	Backend   string `json:"backend,omitempty"`
}

// PageState is the full state of one page.
type PageState struct {
	ID         string                     `json:"id"`
	Prediction session.PredictionSnapshot `json:"prediction"`
	History    session.HistorySnapshot    `json:"history"`
}

// HistoryQuery is a one-shot history request for synchronous callers.
// Zero Scope and Season keep the view's current selection.
type HistoryQuery struct {
	Scope  protocol.Scope
	Season int
	// SortColumn sorts the finished table when set.
	SortColumn *int
	Descending bool
	// Limit caps the rows returned. The view keeps the full table.
	Limit int
}
