// Package gateway assembles the server: it registers the builtin tools,
// starts the WebSocket RPC listener and the HTTP discovery listener, and
// handles graceful shutdown. Registration completes before serving begins,
// which is what lets the registry go unlocked during dispatch.
package gateway
