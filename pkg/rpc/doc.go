/*
Package rpc is the JSON-RPC 2.0 façade used to talk to the execution backend.

Requests are encoded with github.com/sourcegraph/jsonrpc2 and delivered by
whichever transport the host provides:

  - Caller: a synchronous request/response exchange (preferred).
  - Sender: a send channel addressed by the session instance id.

When neither is configured every call fails with
domain.TransportUnsupportedError.
*/
package rpc
