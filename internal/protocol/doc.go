// Package protocol owns the request/response contract spoken with the XMPP
// server's external authentication hook.
//
// Ownership boundary:
// - frame primitives (length-prefixed read/write over the two streams)
// - request parsing (`command:user:server[:password]`)
// - response encoding (2-byte boolean status)
package protocol
