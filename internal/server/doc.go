// Package server exposes playback sessions over HTTP: a websocket topic per session plus JSON endpoints.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /api/sessions/{id}") internally.
//
// # Session Topics
//
// [SocketHandler] upgrades GET /socket/sessions/{id} to a websocket. A joining listener is subscribed to the
// session's broadcast topic, starts its own progress tick, and immediately receives the current snapshot.
// Each inbound command runs through the playback engine and is acknowledged to its issuer only; the resulting
// snapshot reaches every listener through the bus. Commands are rate limited per connection.
//
// # JSON Endpoints
//
// [APIHandler] serves session, queue and track endpoints. Reads return the same snapshot shape listeners receive.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
