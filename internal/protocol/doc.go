// Package protocol owns the XML-RPC wire contract.
//
// Ownership boundary:
// - value tree and envelope types (Call, Fault, Response)
// - canonical XML encoder
// - token-stream decoder for calls, responses and bare values
// - format/transport error taxonomy
//
// Conversion between application types and the value tree lives in the
// codec sub-package.
package protocol
