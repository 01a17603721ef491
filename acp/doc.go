// Package acp exposes a session manager over a newline-delimited JSON-RPC
// 2.0 loop on standard input and output, speaking a subset of the Agent
// Client Protocol.
//
// Four methods are served:
//
//	initialize      handshake; validates the protocol version (1) and
//	                reports static capabilities
//	session/new     creates a session, returns its id
//	session/prompt  runs one turn, streaming session/update notifications
//	                before the final response
//	session/cancel  notification; cancels the session
//
// Messages without an id (or with a null id) are notifications and never
// receive a response. Requests always receive either a result or an error
// with one of four codes: parse error (also for lines over the size
// limit), invalid request (an id with no method), method not found, or
// internal error. Responses are never answered. A malformed request never
// stops the loop.
//
//	srv := acp.NewServer(mgr, acp.WithLogger(logger))
//	err := srv.Serve(ctx, os.Stdin, os.Stdout)
package acp
