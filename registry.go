package main

import "sync"

// Clients is the clients-by-nick registry (§3, §4.3). It is guarded by a
// single mutex; critical sections are short and never held across a send
// or across the channels registry's lock (§5 lock ordering).
type Clients struct {
	mu sync.Mutex
	m  map[string]OutboundSink
}

// NewClients creates an empty clients registry.
func NewClients() *Clients {
	return &Clients{m: make(map[string]OutboundSink)}
}

// TryClaim inserts (nick, sink) iff nick is not already present. It reports
// whether the claim succeeded. This is the only way a nick ever enters the
// registry, and per §4.1 it happens exactly once per session, at the
// Login->SteadyState transition.
func (c *Clients) TryClaim(nick string, sink OutboundSink) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.m[nick]; exists {
		return false
	}
	c.m[nick] = sink
	return true
}

// Release removes nick if present. Idempotent.
func (c *Clients) Release(nick string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, nick)
}

// Lookup returns the sink registered for nick, if any.
func (c *Clients) Lookup(nick string) (OutboundSink, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sink, exists := c.m[nick]
	return sink, exists
}

// Contains reports whether nick currently has a live registration. It is a
// plain read; callers that need check-and-set semantics must use TryClaim
// instead, since a Contains followed by a separate TryClaim is not atomic.
func (c *Clients) Contains(nick string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.m[nick]
	return exists
}

// Count reports how many clients are currently registered, for LUSERS.
func (c *Clients) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// PartResult is what Channels.Part and Channels.RemoveEverywhere return for
// one affected channel: who is left, and whether the channel itself got
// deleted because it is now empty (§3 invariant: a channel exists iff its
// member map is non-empty).
type PartResult struct {
	Channel   string
	Remaining []member
	Removed   bool
}

// Channels is the channels-with-members registry (§3, §4.3). Like Clients,
// it is guarded by a single mutex, and a session may hold this lock or the
// Clients lock but never both at once (§5).
type Channels struct {
	mu sync.Mutex
	m  map[string]map[string]OutboundSink
}

// NewChannels creates an empty channels registry.
func NewChannels() *Channels {
	return &Channels{m: make(map[string]map[string]OutboundSink)}
}

// Join adds (nick, sink) to channel, creating it if it does not yet exist.
// Repeated joins by the same nick just replace its sink. It returns a
// snapshot of the full membership after the insert, for the caller to fan
// the Join reply out to once the lock is released.
func (c *Channels) Join(channel, nick string, sink OutboundSink) []member {
	c.mu.Lock()
	defer c.mu.Unlock()
	members, exists := c.m[channel]
	if !exists {
		members = make(map[string]OutboundSink)
		c.m[channel] = members
	}
	members[nick] = sink
	return channelSnapshot(members)
}

// Count reports how many channels currently exist, for LUSERS.
func (c *Channels) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// Lookup returns a snapshot of channel's current membership, if it exists.
func (c *Channels) Lookup(channel string) ([]member, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	members, exists := c.m[channel]
	if !exists {
		return nil, false
	}
	return channelSnapshot(members), true
}

// Part removes nick from channel. It reports the remaining membership (nil
// if the channel no longer exists) and whether nick was actually a member.
// If the removal empties the channel, the channel entry is deleted (§L3).
func (c *Channels) Part(channel, nick string) (remaining []member, wasMember bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	members, exists := c.m[channel]
	if !exists {
		return nil, false
	}
	if _, exists := members[nick]; !exists {
		return channelSnapshot(members), false
	}
	delete(members, nick)
	if len(members) == 0 {
		delete(c.m, channel)
		return nil, true
	}
	return channelSnapshot(members), true
}

// RemoveEverywhere removes nick from every channel it belongs to, in one
// atomic pass over the registry. It is used by QUIT and by abnormal
// teardown (§4.2.7, §4.1 Closing) so that a disconnecting session is never
// left as a dangling member anywhere (I5).
func (c *Channels) RemoveEverywhere(nick string) []PartResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var results []PartResult
	for channel, members := range c.m {
		if _, exists := members[nick]; !exists {
			continue
		}
		delete(members, nick)
		removed := false
		var remaining []member
		if len(members) == 0 {
			delete(c.m, channel)
			removed = true
		} else {
			remaining = channelSnapshot(members)
		}
		results = append(results, PartResult{
			Channel:   channel,
			Remaining: remaining,
			Removed:   removed,
		})
	}
	return results
}
