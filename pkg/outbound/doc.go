// Package outbound holds a connection's pending outbound envelopes and the
// goroutine that delivers them.
//
// Producers call Queue.Enqueue from any goroutine; it never blocks. A single
// Sender drains the queue in FIFO order and writes each envelope to the
// transport. An optional ShouldSend predicate lets a newer message supersede
// the one ahead of it: while a next message is waiting and
// ShouldSend(current, next) is false, current is dropped.
package outbound
