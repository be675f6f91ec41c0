package session

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/mattgrayson/pulselink/internal/protocol"
)

var (
	// ErrSessionNotFound is returned for codes with no live session,
	// including sessions that were reclaimed by the idle reaper.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionFull is returned when a session is at capacity.
	ErrSessionFull = errors.New("session is full")
)

// Peer is the send side of one member's connection. Send must not
// block; it reports false when the connection can no longer accept
// messages, which the session treats as an implicit leave.
type Peer interface {
	Send(data []byte) bool
}

// member records one peer's membership in a session.
type member struct {
	peer     Peer
	joinedAt time.Time
}

// Session is a group of up to capacity peers relaying messages to each
// other under a shared code. All membership changes and relays for one
// session run under its mutex, so the user counts carried by the
// notifications they trigger are exact at emission time.
type Session struct {
	code     string
	capacity int

	mu           sync.Mutex
	members      []member
	lastActivity time.Time
	reclaimed    bool
}

// Code returns the session's 6-digit code.
func (s *Session) Code() string {
	return s.code
}

// Join appends the peer and tells every existing member about the new
// connection. It returns the member count including the new peer.
// Joining an empty session that hasn't been reclaimed yet works the
// same as joining an occupied one; that is what lets a client redial
// its stored code after a transient drop.
func (s *Session) Join(p Peer) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reclaimed {
		return 0, ErrSessionNotFound
	}
	if len(s.members) >= s.capacity {
		return 0, ErrSessionFull
	}

	s.members = append(s.members, member{peer: p, joinedAt: time.Now()})
	s.lastActivity = time.Now()
	n := len(s.members)
	s.sendExcept(p, protocol.PartnerConnected(s.code, n))
	return n, nil
}

// Leave removes the peer if present and tells the remaining members.
// Calling it again for the same peer is a no-op, so duplicate close
// notifications are harmless. The session itself stays registered even
// when this drains it to zero members; reclamation is the reaper's job.
func (s *Session) Leave(p Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.remove(p) {
		return
	}
	s.lastActivity = time.Now()
	s.sendExcept(p, protocol.PartnerDisconnected(s.code, len(s.members)))
}

// Relay delivers msg to every member except sender.
func (s *Session) Relay(sender Peer, msg *protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity = time.Now()
	s.sendExcept(sender, msg)
}

// MemberCount returns the current number of members.
func (s *Session) MemberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// LastActivity returns the time of the last join, leave, or relay.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// sendExcept delivers msg to every member except skip. A member whose
// send fails is removed on the spot, before the fan-out continues, and
// the survivors are then told about each departure. Must be called
// while holding mu.
func (s *Session) sendExcept(skip Peer, msg *protocol.Message) {
	data, err := msg.Encode()
	if err != nil {
		log.Printf("session: failed to marshal %s message: %v", msg.Type, err)
		return
	}

	var dropped []Peer
	i := 0
	for i < len(s.members) {
		m := s.members[i]
		if m.peer == skip {
			i++
			continue
		}
		if !m.peer.Send(data) {
			s.members = append(s.members[:i], s.members[i+1:]...)
			dropped = append(dropped, m.peer)
			continue
		}
		i++
	}

	for _, p := range dropped {
		log.Printf("session: dropping unreachable member from session %s", s.code)
		s.sendExcept(p, protocol.PartnerDisconnected(s.code, len(s.members)))
	}
}

// remove deletes the peer's membership entry, preserving join order of
// the rest. Must be called while holding mu.
func (s *Session) remove(p Peer) bool {
	for i, m := range s.members {
		if m.peer == p {
			s.members = append(s.members[:i], s.members[i+1:]...)
			return true
		}
	}
	return false
}

// reclaim marks the session dead if it is still empty and has been idle
// for at least idle. It reports whether the registry entry should go.
// Once marked, a concurrent Join fails with ErrSessionNotFound rather
// than adding a member nobody could reach.
func (s *Session) reclaim(now time.Time, idle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.members) > 0 || now.Sub(s.lastActivity) < idle {
		return false
	}
	s.reclaimed = true
	return true
}
