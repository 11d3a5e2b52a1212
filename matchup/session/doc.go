// Package session holds the per-view request state of the matchup client.
//
// Core Types:
//
// PredictionView issues one-shot prediction queries and turns the backend's
// win fraction into an Outcome. HistoryView issues streamed table queries,
// assembles headers and chunks into a Dataset, and sorts the finished table.
// A Page groups one of each for a single consumer (a browser tab, an MCP
// client, a CLI run); pages are owned by the Manager.
//
// Request Lifecycle:
//
// Each view allows at most one request in flight. Issuing while loading
// returns ErrRequestInFlight, issuing while disconnected returns
// ErrNotConnected, and a query that fails local validation returns a
// *ValidationError. None of these touch the view or the network. A request
// stays in flight until its terminal frame arrives or the view is closed;
// there are no timeouts here.
//
// Correlation:
//
// Every request is stamped with a fresh request id and the view's
// subscription only accepts frames echoing that id. Frames without an id are
// accepted by label, so a backend that never echoes ids still works as long
// as one view per label is loading at a time.
//
// Concurrency:
//
// Views are mutated by callers and by the connection's reader goroutine.
// Each view guards its own state with a mutex; change hooks run after the
// lock is released.
//
// Usage:
//
//	manager := session.NewManager(session.Deps{
//		Sender:  conn,
//		Router:  router,
//		Catalog: teams.Default(),
//	})
//	page, _ := manager.Create("")
//	err := page.Prediction.Issue(session.PredictionQuery{
//		Team: "MIN", Season1: 2023, Opponent: "BUF", Season2: 2023,
//	})
//	snap, err := page.Prediction.Wait(ctx)
package session
