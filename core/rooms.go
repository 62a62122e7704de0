package core

import "sync"

// RoomTable maps room IDs to the set of connections currently joined. A
// connection appears in a room's member set iff it joined and has not since
// left or disconnected; the disconnect cascade is driven by the coordinator,
// not by lazy filtering here.
type RoomTable struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]struct{}
	byConn map[string]map[string]struct{}
}

func NewRoomTable() *RoomTable {
	return &RoomTable{
		rooms:  make(map[string]map[string]struct{}),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Join adds a connection to a room. Joining twice has no additional effect.
func (t *RoomTable) Join(roomID, connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	members, ok := t.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		t.rooms[roomID] = members
	}
	members[connID] = struct{}{}

	rooms, ok := t.byConn[connID]
	if !ok {
		rooms = make(map[string]struct{})
		t.byConn[connID] = rooms
	}
	rooms[roomID] = struct{}{}
}

// Leave removes a connection from a room. It is idempotent.
func (t *RoomTable) Leave(roomID, connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaveLocked(roomID, connID)
}

func (t *RoomTable) leaveLocked(roomID, connID string) {
	if members, ok := t.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(t.rooms, roomID)
		}
	}
	if rooms, ok := t.byConn[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(t.byConn, connID)
		}
	}
}

// MembersOf returns the connection IDs currently joined to a room.
func (t *RoomTable) MembersOf(roomID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	members := t.rooms[roomID]
	if len(members) == 0 {
		return nil
	}
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// RoomsOf returns the rooms a connection has joined.
func (t *RoomTable) RoomsOf(connID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rooms := t.byConn[connID]
	if len(rooms) == 0 {
		return nil
	}
	out := make([]string, 0, len(rooms))
	for id := range rooms {
		out = append(out, id)
	}
	return out
}

// Contains reports whether a connection is a member of a room.
func (t *RoomTable) Contains(roomID, connID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rooms[roomID][connID]
	return ok
}

// DropConn removes a connection from every room it had joined and returns
// the affected room IDs. Used for the disconnect cascade.
func (t *RoomTable) DropConn(connID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	rooms := t.byConn[connID]
	if len(rooms) == 0 {
		return nil
	}
	out := make([]string, 0, len(rooms))
	for roomID := range rooms {
		out = append(out, roomID)
	}
	for _, roomID := range out {
		t.leaveLocked(roomID, connID)
	}
	return out
}
