package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/wricardo/gridiron-odds/matchup/protocol"
	"github.com/wricardo/gridiron-odds/matchup/service"
	"github.com/wricardo/gridiron-odds/matchup/session"
)

const (
	// DefaultPageID is the page used when a tool call names none.
	DefaultPageID = "mcp"
	// DefaultWait bounds how long a tool waits for the backend.
	DefaultWait = 30 * time.Second
	// DefaultRowLimit caps table output.
	DefaultRowLimit = 25
)

// Server exposes the matchup service as MCP tools
type Server struct {
	service   service.MatchupService
	mcpServer *server.MCPServer
	wait      time.Duration
	logger    *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithWait sets how long predict and history tools wait for results.
func WithWait(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.wait = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates an MCP server over svc
func NewServer(svc service.MatchupService, version string, opts ...Option) *Server {
	s := &Server{
		service: svc,
		wait:    DefaultWait,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcpServer = server.NewMCPServer(
		"Gridiron Odds",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Gridiron Odds - NFL matchup predictions and game history

AVAILABLE TOOLS:
- list_teams: Team codes, names and founding seasons
- connection_status: Whether the analytics backend is reachable
- predict_matchup: Simulated wins out of 100 for two team-seasons
- historical_games: Game table for a season, all teams or one team
- sort_historical_games: Re-sort the last table by column
- reset_page: Clear a page's prediction and table

Seasons start at 1970; a team cannot be queried before its founding season.`),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Handler serves MCP JSON-RPC messages over HTTP POST.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := s.mcpServer.HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		if response == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	pageID := map[string]interface{}{
		"type":        "string",
		"description": "Page to use (optional, defaults to a shared MCP page)",
	}

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_teams",
		Description: "List every team with its code, name and founding season",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleListTeams)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "connection_status",
		Description: "Report the analytics backend connection state",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleConnectionStatus)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "predict_matchup",
		Description: "Predict how many of 100 simulated games each team-season wins",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"team": map[string]interface{}{
					"type":        "string",
					"description": "First team code, e.g. MIN",
				},
				"season1": map[string]interface{}{
					"type":        "number",
					"description": "Season of the first team",
				},
				"opponent": map[string]interface{}{
					"type":        "string",
					"description": "Second team code, e.g. BUF",
				},
				"season2": map[string]interface{}{
					"type":        "number",
					"description": "Season of the second team",
				},
				"page_id": pageID,
			},
			Required: []string{"team", "season1", "opponent", "season2"},
		},
	}, s.handlePredict)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "historical_games",
		Description: "Fetch the game table for a season, optionally for one team, sorted and truncated",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"team": map[string]interface{}{
					"type":        "string",
					"description": "Team code, or ALL for every team (default ALL)",
				},
				"season": map[string]interface{}{
					"type":        "number",
					"description": "Season (default 2023)",
				},
				"sort_column": map[string]interface{}{
					"type":        "number",
					"description": "Zero-based column to sort by (optional)",
				},
				"descending": map[string]interface{}{
					"type":        "boolean",
					"description": "Sort descending (requires sort_column)",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": fmt.Sprintf("Maximum rows to return (default %d)", DefaultRowLimit),
				},
				"page_id": pageID,
			},
		},
	}, s.handleHistory)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "sort_historical_games",
		Description: "Sort the last fetched table by column; repeating a column flips the direction",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"column": map[string]interface{}{
					"type":        "number",
					"description": "Zero-based column to sort by",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": fmt.Sprintf("Maximum rows to return (default %d)", DefaultRowLimit),
				},
				"page_id": pageID,
			},
			Required: []string{"column"},
		},
	}, s.handleSort)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_page",
		Description: "Clear the prediction and the game table of a page, abandoning any request still running",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"page_id": pageID,
			},
		},
	}, s.handleReset)
}

// Tool handlers

func (s *Server) handleListTeams(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tFIRST SEASON")
	for _, t := range s.service.ListTeams(ctx) {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", t.Code, t.Name, t.FirstSeason())
	}
	tw.Flush()
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleConnectionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.service.Status(ctx)
	result := fmt.Sprintf("Backend: %s\nState: %s\nConnected: %t\n", st.Backend, st.State, st.Connected)
	return mcp.NewToolResultText(result), nil
}

func (s *Server) handlePredict(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	q := session.PredictionQuery{
		Team:     stringArg(args, "team"),
		Opponent: stringArg(args, "opponent"),
	}
	var err error
	if q.Season1, err = intArg(args, "season1", 0); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if q.Season2, err = intArg(args, "season2", 0); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()

	pageID := pageArg(args)
	snap, err := s.service.PredictAndWait(ctx, pageID, q)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// Nothing else can clear a page an agent abandoned.
			if rerr := s.service.ResetPrediction(context.Background(), pageID); rerr != nil {
				s.logger.Warn("failed to reset prediction", zap.String("page_id", pageID), zap.Error(rerr))
			}
		}
		return mcp.NewToolResultError(s.toolError(err)), nil
	}
	if snap.Error != "" {
		return mcp.NewToolResultError(snap.Error), nil
	}
	if snap.Outcome == nil {
		return mcp.NewToolResultError("The backend returned no prediction."), nil
	}

	return mcp.NewToolResultText(service.FormatPrediction(q, *snap.Outcome)), nil
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	q := service.HistoryQuery{
		Scope:      protocol.Scope(strings.ToUpper(stringArg(args, "team"))),
		Descending: boolArg(args, "descending"),
	}
	if q.Scope == "" {
		q.Scope = protocol.ScopeAll
	}
	var err error
	if q.Season, err = intArg(args, "season", session.DefaultSeason); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if q.Limit, err = intArg(args, "limit", DefaultRowLimit); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := args["sort_column"]; ok {
		col, err := intArg(args, "sort_column", 0)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		q.SortColumn = &col
	} else if q.Descending {
		return mcp.NewToolResultError("descending requires sort_column"), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()

	pageID := pageArg(args)
	snap, err := s.service.FetchHistoryAndWait(ctx, pageID, q)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			if cerr := s.service.CloseHistory(context.Background(), pageID); cerr != nil {
				s.logger.Warn("failed to close history", zap.String("page_id", pageID), zap.Error(cerr))
			}
		}
		return mcp.NewToolResultError(s.toolError(err)), nil
	}
	return mcp.NewToolResultText(service.FormatHistory(snap)), nil
}

func (s *Server) handleSort(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	col, err := intArg(args, "column", -1)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit, err := intArg(args, "limit", DefaultRowLimit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	snap, err := s.service.SortHistory(ctx, pageArg(args), col)
	if err != nil {
		return mcp.NewToolResultError(s.toolError(err)), nil
	}
	if snap.Dataset != nil && limit > 0 {
		limited := snap.Dataset.Limit(limit)
		snap.Dataset = &limited
	}
	return mcp.NewToolResultText(service.FormatHistory(snap)), nil
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := pageArg(request.GetArguments())

	if err := s.service.ResetPrediction(ctx, pageID); err != nil {
		if errors.Is(err, session.ErrPageNotFound) {
			return mcp.NewToolResultText(fmt.Sprintf("Page %s has nothing to reset.", pageID)), nil
		}
		return mcp.NewToolResultError(s.toolError(err)), nil
	}
	if err := s.service.CloseHistory(ctx, pageID); err != nil {
		return mcp.NewToolResultError(s.toolError(err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Page %s reset.", pageID)), nil
}

func (s *Server) toolError(err error) string {
	s.logger.Debug("tool call failed", zap.Error(err))

	var ve *session.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, session.ErrNotConnected):
		return "The analytics backend is not connected. Try again once connection_status reports open."
	case errors.Is(err, session.ErrRequestInFlight):
		return "A request for this page is still running. Wait for it, call reset_page, or use another page_id."
	case errors.Is(err, session.ErrNoDataset):
		return "No table is loaded. Call historical_games first."
	case errors.Is(err, context.DeadlineExceeded):
		return "The backend did not answer in time. The request was abandoned; try again."
	}
	return err.Error()
}

func pageArg(args map[string]interface{}) string {
	if id := stringArg(args, "page_id"); id != "" {
		return id
	}
	return DefaultPageID
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func boolArg(args map[string]interface{}, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// intArg reads a number argument; agents send numbers as JSON numbers or
// strings.
func intArg(args map[string]interface{}, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case string:
		if strings.TrimSpace(n) == "" {
			return def, nil
		}
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%s must be a number, got %q", key, n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%s must be a number", key)
}
