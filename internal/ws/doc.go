// Package ws implements the WebSocket hub for plantpulse.
//
// Hub manages a set of connected clients. The runner pushes a run summary
// into the hub after every analysis run; the hub fans it out to all
// connected clients and replays the most recent summary to new connections.
//
// Message format sent to clients:
//
//	{
//	  "event": "run",
//	  "data":  { /* same schema as the entries of GET /api/v1/runs */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. WebSocket endpoint is mounted at /ws/stream by the server.
package ws
