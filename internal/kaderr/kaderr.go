// Package kaderr collects the sentinel error kinds shared by the
// nodeid, kademlia, wire and peer packages. Call sites wrap a sentinel
// with fmt.Errorf("...: %w", ErrX) and callers compare with errors.Is.
package kaderr

import "errors"

var (
	// ErrParse is returned when a NodeId string fails to parse.
	ErrParse = errors.New("kaderr: malformed node id")

	// ErrOutOfRange is returned by NodeId.NthBit for i outside [0,160).
	ErrOutOfRange = errors.New("kaderr: bit index out of range")

	// ErrDeclare is returned when a message class is registered without
	// a type tag.
	ErrDeclare = errors.New("kaderr: message type missing a type tag")

	// ErrCreate is returned for bad message construction arguments, or
	// when Respond is given a class outside the message registry.
	ErrCreate = errors.New("kaderr: invalid message construction")

	// ErrDecode is returned for a truncated buffer or a field that
	// fails to decode.
	ErrDecode = errors.New("kaderr: message decode failed")

	// ErrUnknownType is returned when a type tag has no registered
	// decoder.
	ErrUnknownType = errors.New("kaderr: unknown message type")

	// ErrNoHandler is returned when a message type has no registered
	// handler.
	ErrNoHandler = errors.New("kaderr: no handler registered for message type")

	// ErrBinaryTree is returned when a tree-shape invariant is
	// violated, e.g. splitting an already-split node. Internal bug,
	// always fatal.
	ErrBinaryTree = errors.New("kaderr: binary tree invariant violated")

	// ErrRoutingTable is returned by peer registration paths, e.g.
	// double-registering a handler for the same message type.
	ErrRoutingTable = errors.New("kaderr: routing table / handler registration error")

	// ErrTimeout is returned by the synchronous client when no
	// response arrives within its deadline.
	ErrTimeout = errors.New("kaderr: request timed out")
)
