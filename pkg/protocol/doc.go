// Package protocol implements the JSON wire envelope exchanged by wscomms peers.
//
// Every WebSocket text message carries exactly one Envelope:
//
//	{ "name": "Add", "arguments": [1, 2], "guid": "4f0c..." }
//
// The name selects an operation on the receiving side, the arguments bind
// positionally to the operation's parameters, and the guid correlates a
// request with its reply. Pushes that expect no reply leave the guid empty.
//
// # Reserved Names
//
//   - ResponseName ("__response"): successful reply, arguments[0] holds the result
//   - ErrorName ("__error"): failed reply, arguments is null
//   - IdentityQuery ("GetName"): answered by every dispatch table with its label
//
// # Values
//
// Arguments are kept as Value, a tagged variant over the JSON kinds
// (null, bool, number, string, array, object). A Value retains its raw JSON
// so nested structures round-trip untouched; type coercion into Go types is
// deferred to the dispatch layer.
//
// # Limits
//
// Decode rejects messages nested deeper than MaxArgumentDepth to keep
// hostile payloads from exhausting the decoder.
package protocol
