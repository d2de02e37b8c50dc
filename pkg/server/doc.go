// Package server hosts command/response sessions over WebSocket.
//
// A Server owns a set of Routes. Each Route is mounted at a URL prefix,
// carries its own dispatch table built from a Provider, and tracks the
// sessions connected to it:
//
//	srv := server.New(server.DefaultServerConfig().WithAddress(":8080"))
//	route, err := srv.AddRoute("/calc", calculator{})
//	...
//	tick, _ := protocol.NewCommand("Tick", n)
//	route.SendMessage(tick)
//	srv.Run()
//
// Besides the WebSocket routes, the HTTP handler serves the browser client
// at /_wscomms/client.js, an optional Prometheus endpoint, and static
// content from any configured content sources.
//
// # Broadcast
//
// Route.SendMessage queues a message on every open session of the route.
// Server.SendMessage does the same for every route. Sessions that are
// closing or closed are skipped silently.
//
// # Discovery
//
// When a discovery.Registry is configured, Run announces every route under
// the configured link name and withdraws the announcements on Shutdown.
package server
