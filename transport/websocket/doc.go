// Package websocket carries both WebSocket legs of the matchup client.
//
// Backend connection:
//
// Conn owns the single persistent socket to the simulation backend. It
// moves through Connecting, Open, Closed and Errored, sends a keep-alive
// {"action":"heartbeat"} on a fixed interval only while Open, and refuses
// to send (ErrNotConnected) rather than queueing when the socket is down.
// Every inbound text frame is handed to OnMessage from one reader goroutine,
// so consumers see frames in arrival order.
//
// A dropped connection stays down unless ReconnectOptions.Enabled is set, in
// which case the connection is redialed with exponential backoff.
//
//	conn := websocket.Open(ctx, websocket.Options{
//		URL:       "wss://backend.example/ws",
//		OnMessage: router.HandleMessage,
//	})
//	defer conn.Close()
//
// Browser push:
//
// Hub is a hub-and-spoke broadcaster for browser clients. Clients attach to
// a page via /ws?page=<id> and receive a JSON Message every time that page's
// views change:
//
//	{"page_id": "a1b2", "event": "history", "data": {...}}
//
// Client input is ignored; the connection is kept alive with pings.
//
// Concurrency:
//
// The hub owns its client map on the Run goroutine. BroadcastToPage never
// blocks, so it is safe to call from the backend reader goroutine.
package websocket
