package peer

import (
	"time"

	"github.com/MildC/kad-core/kademlia"
)

// Config configures a Peer: typed fields with sane defaults, plus
// callback hooks for the events the core leaves as extension points
// rather than implementing.
type Config struct {
	// K is the routing table's per-bucket capacity.
	K int
	// RelaxedSplitDepth is the threshold depth: a full, non-owner
	// bucket is split anyway when the inserted contact shares more
	// than this many leading bits with the owner.
	RelaxedSplitDepth int

	// MaxDatagramSize bounds accepted inbound datagrams.
	MaxDatagramSize int

	// ClientTimeout is how long the synchronous client waits for a
	// correlated response before failing with a Timeout error.
	ClientTimeout time.Duration

	// ShutdownGrace bounds how long Serve waits for in-flight
	// dispatches to finish once shutdown is signalled.
	ShutdownGrace time.Duration

	// Workers is the number of datagrams the dispatcher may process
	// concurrently. 1 gives a single-threaded cooperative model; >1
	// relies on kademlia.RoutingTable's own internal locking to stay
	// safe under concurrent dispatch.
	Workers int

	// BootstrapNodes is the list of (address, port) peers accepted at
	// construction and persisted without being dialed: the protocol
	// that would act on this list (a PING + FIND_NODE join loop) is
	// not implemented here.
	BootstrapNodes []Endpoint

	// OnUnhandledMessage is called (after logging) whenever a decoded
	// message has no registered handler — a single extension point for
	// layering STORE/FIND_VALUE-style handling on top of this core
	// without modifying it.
	OnUnhandledMessage func(typeTag uint32, sender Endpoint)

	// OnRoutingTableSplit is called synchronously whenever a leaf
	// splits into a branch.
	OnRoutingTableSplit func(kademlia.SplitEvent)

	// AuditIndexer, if set, receives a record of every datagram the
	// dispatcher finishes handling. See audit.go.
	AuditIndexer AuditSink
}

// NewDefaultConfig returns a Config with the reference defaults.
func NewDefaultConfig() *Config {
	return &Config{
		K:                 kademlia.DefaultK,
		RelaxedSplitDepth: kademlia.DefaultDepth,
		MaxDatagramSize:   MaxDatagramSize,
		ClientTimeout:     10 * time.Second,
		ShutdownGrace:     time.Second,
		Workers:           1,
	}
}
