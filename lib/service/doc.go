// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package service carries flowd's client/server protocol: CBOR values
// over a Unix socket, one request per connection.
//
// A request is a CBOR map with an "action" key and action-specific
// fields. [SocketServer] routes it to the handler registered for the
// action. One-shot actions ([SocketServer.Handle]) answer with a
// single [Response] and the connection closes. Stream actions
// ([SocketServer.HandleStream]) answer with a [StreamAck] and then
// write values until either side closes; flowd uses them for the
// replica subscribe stream.
//
// The server reads the connecting process's credentials with
// SO_PEERCRED and stores them in the handler context ([PeerFrom]).
// The user name derived from the peer UID is the identity the
// authorization gate checks; it is not taken from the request.
//
// [ServiceClient] is the matching client: [ServiceClient.Call] for
// one-shot actions, [ServiceClient.OpenStream] for streams.
package service
