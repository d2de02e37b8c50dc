package clientdist

import _ "embed"

// WSCommsJS is the browser client.
//
// It is served by pkg/server at "/_wscomms/client.js".
//
//go:embed wscomms.js
var WSCommsJS []byte
