// Package app holds the wallet use cases behind the JSON-RPC surface.
//
// Every operation checks the session preconditions first, then reports its
// outcome as an outcome.Result, renders it on the console display and
// records it in metrics. Nothing here knows about HTTP or JSON-RPC framing.
package app
