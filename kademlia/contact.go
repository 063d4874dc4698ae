package kademlia

import (
	"fmt"
	"time"

	"github.com/MildC/kad-core/nodeid"
)

// Contact is a known peer: its endpoint, its node id, and the last time
// it was observed. address/port are empty only for the self-contact
// installed when a RoutingTable is constructed.
type Contact struct {
	Address  string
	Port     int
	NodeID   nodeid.NodeId
	LastSeen time.Time

	self bool
}

// NewContact builds a Contact, stamping LastSeen with the current time.
func NewContact(address string, port int, id nodeid.NodeId) *Contact {
	return &Contact{
		Address:  address,
		Port:     port,
		NodeID:   id,
		LastSeen: time.Now(),
	}
}

// newSelfContact builds the contact installed at RoutingTable
// construction, whose address/port are intentionally absent.
func newSelfContact(id nodeid.NodeId) *Contact {
	return &Contact{
		NodeID:   id,
		LastSeen: time.Now(),
		self:     true,
	}
}

// IsSelf reports whether this is the table owner's own contact.
func (c *Contact) IsSelf() bool {
	return c.self
}

// Touch updates LastSeen to now. Called on every re-insertion hit; on
// first insertion LastSeen is stamped by NewContact instead.
func (c *Contact) Touch(now time.Time) {
	c.LastSeen = now
}

// String renders a human-readable diagnostic line — not a wire format,
// used only in log lines.
func (c *Contact) String() string {
	if c.self {
		return fmt.Sprintf("%s (self)", c.NodeID)
	}
	return fmt.Sprintf("%s (%s:%d)", c.NodeID, c.Address, c.Port)
}
