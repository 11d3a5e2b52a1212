// Package mcp exposes the matchup client as Model Context Protocol tools.
//
// MCP Tools:
//   - list_teams: team catalog with first queryable seasons
//   - connection_status: analytics backend connection state
//   - predict_matchup: wins out of 100 for two team-seasons
//   - historical_games: fetch a game table, optionally sorted and truncated
//   - sort_historical_games: re-sort the last table of a page
//   - reset_page: clear a page's prediction and table, abandoning running requests
//
// Tools call the matchup service in-process. Each call works on a page,
// "mcp" unless page_id is given, so an agent can keep several tables apart.
// Predict and history tools wait for the backend up to a configurable bound
// and return a tool error when it passes, resetting the view they waited on.
//
// Transport Modes:
//   - Stdio: server.ServeStdio(s.MCPServer()) for local MCP clients
//   - HTTP: s.Handler() mounted on /mcp by the API server
package mcp
