// Package session binds a transport to the command/response engine.
//
// A Session owns one connection's outbound queue and sender, its pending
// call registry, and the dispatch table used for inbound commands. Either
// end of a connection runs a Session: the host opens one per accepted
// socket, the peer creates one before dialing and attaches the transport
// once the handshake succeeds.
//
// Lifecycle:
//
//	Connecting ──Attach──▶ Open ──Close/read or write failure──▶ Closing ──▶ Closed
//	     │                                                                   ▲
//	     └───────────────────────────Fail────────────────────────────────────┘
//
// Inbound messages are processed one at a time in the order received.
// Replies are queued on the same session; commands for the peer can be queued
// from any goroutine with Send, Notify and Call.
package session
