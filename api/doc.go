// Package api provides the HTTP REST API for the matchup client.
//
// Every page is an independent pair of views (prediction and history) kept
// by the session manager. The API drives those views and reports their
// state; requests to the analytics backend are asynchronous, so mutating
// endpoints answer 202 with a loading snapshot and the final state is
// either polled or pushed over the page websocket.
//
// Endpoints:
//
// Connection and catalog:
//   - GET /api/health - Liveness probe
//   - GET /api/status - Backend connection state
//   - GET /api/teams - Team catalog ordered by code
//
// Pages:
//   - POST /api/pages - Create a page, optional {"id": "..."}
//   - GET /api/pages - List pages (?limit=N)
//   - GET /api/pages/{id} - Both views of a page
//   - DELETE /api/pages/{id} - Delete a page
//
// Prediction view:
//   - POST /api/pages/{id}/prediction - Request a prediction
//   - GET /api/pages/{id}/prediction - Current prediction state
//   - DELETE /api/pages/{id}/prediction - Clear the outcome
//
// History view:
//   - POST /api/pages/{id}/history/open - Open the view
//   - POST /api/pages/{id}/history/fetch - Request a game table
//   - POST /api/pages/{id}/history/sort - Sort by {"column": N}
//   - GET /api/pages/{id}/history - Current table (?limit=N)
//   - DELETE /api/pages/{id}/history - Close and reset the view
//
// Other:
//   - GET /ws?page={id} - Live view updates for one page
//   - GET /metrics - Prometheus metrics, when mounted
//   - /mcp - MCP streamable HTTP endpoint, when mounted
//
// Request/Response Format:
//
// Prediction requests take:
//
//	{
//	  "team": "MIN",
//	  "season1": 2023,
//	  "opponent": "BUF",
//	  "season2": 2023
//	}
//
// History fetches take {"team": "MIN", "season": 2022}; omitted fields keep
// the view's current selection. "ALL" selects every team.
//
// Error Handling:
//
// Errors are returned as {"error": "message"} with:
//   - 400 for malformed bodies, bad page ids and out-of-range columns
//   - 404 for unknown pages
//   - 409 when a request is already in flight or no table is loaded
//   - 422 for rejected team or season input
//   - 503 when the backend is not connected
package api
