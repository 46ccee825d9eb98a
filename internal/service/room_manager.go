package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/immxrtalbeast/axenix_signal/internal/domain"
)

var errJoinAbandoned = domain.Errorf(domain.CodeInvalidState, "connection closed while joining")

// RoomManager owns room membership. The table lock guards the room map and
// the user index; each room has its own lock for its participants. A room
// lock may be held while taking the table lock, never the other way round.
type RoomManager struct {
	capacity int
	log      *slog.Logger

	mu      sync.Mutex
	epoch   uint64
	rooms   map[string]*room
	members map[string]string // user id -> room id, reserved before the room lock is taken
}

type room struct {
	mu           sync.Mutex
	id           string
	epoch        uint64
	participants []*domain.Participant
	seq          uint64
	createdAt    time.Time
	session      domain.RouterHandle
	degraded     bool
	// set when the last participant leaves; a closed room is out of the table
	closed bool
}

type JoinResult struct {
	Epoch   uint64
	Seq     uint64
	Created bool
	// Roster includes the joining participant, in join order.
	Roster []domain.ParticipantInfo
	// Others are the connection ids of participants already in the room.
	Others []string
}

type LeaveResult struct {
	Found       bool
	Epoch       uint64
	Seq         uint64
	Participant domain.ParticipantInfo
	Remaining   []string
	// Transports the participant held, to be released in the engine.
	Transports []string
	Destroyed  bool
	// Session is set when the room was destroyed with a live media router.
	Session domain.RouterHandle
}

// ChatStamp places a chat message in the room's sequence.
type ChatStamp struct {
	Epoch   uint64
	Seq     uint64
	Sender  domain.ParticipantInfo
	Targets []string
}

// MediaCommit records media resources a participant obtained from the engine.
type MediaCommit struct {
	Direction domain.TransportDirection
	// TransportID is recorded only when NewTransport is set.
	TransportID  string
	NewTransport bool
	ProducerID   string
	Kind         domain.MediaKind
}

func NewRoomManager(capacity int, log *slog.Logger) *RoomManager {
	if log == nil {
		log = slog.Default()
	}
	return &RoomManager{
		capacity: capacity,
		log:      log,
		rooms:    make(map[string]*room),
		members:  make(map[string]string),
	}
}

// Join adds p to the room, creating the room on first use. commit runs under
// the room lock with the prospective result before p becomes visible to
// anyone; if it returns false the join is abandoned without a trace. Notices
// queued from commit reach members in seq order.
func (m *RoomManager) Join(roomID string, p *domain.Participant, commit func(JoinResult) bool) (JoinResult, error) {
	const op = "service.rooms.join"
	log := m.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.String("user_id", p.UserID),
	)

	for {
		m.mu.Lock()
		if current, ok := m.members[p.UserID]; ok {
			m.mu.Unlock()
			return JoinResult{}, domain.Errorf(domain.CodeDuplicateIdentity, "user %q is already in room %q", p.UserID, current)
		}
		r, ok := m.rooms[roomID]
		created := !ok
		if created {
			m.epoch++
			r = &room{id: roomID, epoch: m.epoch, createdAt: time.Now().UTC()}
			m.rooms[roomID] = r
		}
		m.members[p.UserID] = roomID
		m.mu.Unlock()

		r.mu.Lock()
		if r.closed {
			// emptied and removed between the two locks
			r.mu.Unlock()
			m.release(p.UserID, roomID)
			continue
		}
		if m.capacity > 0 && len(r.participants) >= m.capacity {
			r.mu.Unlock()
			m.release(p.UserID, roomID)
			log.Info("room is full", slog.Int("capacity", m.capacity))
			return JoinResult{}, domain.Errorf(domain.CodeRoomFull, "room %q is full", roomID)
		}

		res := JoinResult{Epoch: r.epoch, Created: created, Seq: r.seq + 1}
		for _, other := range r.participants {
			res.Others = append(res.Others, other.ConnID)
		}
		res.Roster = append(r.roster(), p.Info())

		if commit != nil && !commit(res) {
			m.discardIfEmpty(r)
			r.mu.Unlock()
			m.release(p.UserID, roomID)
			log.Info("join abandoned")
			return JoinResult{}, errJoinAbandoned
		}
		r.participants = append(r.participants, p)
		r.seq = res.Seq
		r.mu.Unlock()

		if created {
			log.Info("room created")
		}
		log.Info("participant joined", slog.Uint64("seq", res.Seq), slog.Int("participants", len(res.Roster)))
		return res, nil
	}
}

// Leave removes the participant bound to connID. Unknown rooms and
// participants are logged and reported with Found unset. announce, if set,
// runs under the room lock once the participant is gone.
func (m *RoomManager) Leave(roomID, userID, connID string, announce func(LeaveResult)) LeaveResult {
	const op = "service.rooms.leave"
	log := m.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.String("user_id", userID),
	)

	r := m.get(roomID)
	if r == nil {
		log.Warn("leave for unknown room")
		return LeaveResult{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	if !r.closed {
		idx = r.index(userID)
	}
	if idx < 0 || r.participants[idx].ConnID != connID {
		log.Warn("leave for unknown participant")
		return LeaveResult{}
	}

	p := r.participants[idx]
	r.participants = append(r.participants[:idx], r.participants[idx+1:]...)
	r.seq++

	res := LeaveResult{Found: true, Epoch: r.epoch, Seq: r.seq, Participant: p.Info()}
	for _, id := range p.Transports {
		res.Transports = append(res.Transports, id)
	}
	for _, other := range r.participants {
		res.Remaining = append(res.Remaining, other.ConnID)
	}

	m.mu.Lock()
	if m.members[userID] == roomID {
		delete(m.members, userID)
	}
	if len(r.participants) == 0 {
		r.closed = true
		if m.rooms[roomID] == r {
			delete(m.rooms, roomID)
		}
		res.Destroyed = true
		res.Session = r.session
	}
	m.mu.Unlock()

	if announce != nil {
		announce(res)
	}
	log.Info("participant left", slog.Uint64("seq", res.Seq), slog.Bool("destroyed", res.Destroyed))
	return res
}

// Chat stamps a chat message of userID with the next room seq. deliver runs
// under the room lock with every member as a target, sender included.
func (m *RoomManager) Chat(roomID, userID string, deliver func(ChatStamp)) (ChatStamp, error) {
	var (
		stamp ChatStamp
		err   error
	)
	ok := m.withRoom(roomID, func(r *room) {
		idx := r.index(userID)
		if idx < 0 {
			err = domain.Errorf(domain.CodeInvalidState, "not in room %q", roomID)
			return
		}
		r.seq++
		stamp = ChatStamp{Epoch: r.epoch, Seq: r.seq, Sender: r.participants[idx].Info()}
		for _, p := range r.participants {
			stamp.Targets = append(stamp.Targets, p.ConnID)
		}
		if deliver != nil {
			deliver(stamp)
		}
	})
	if !ok {
		return ChatStamp{}, domain.Errorf(domain.CodeInvalidState, "not in room %q", roomID)
	}
	return stamp, err
}

// BroadcastTargets returns the connection ids of the room's participants,
// without excludeUserID. An empty exclude selects everyone.
func (m *RoomManager) BroadcastTargets(roomID, excludeUserID string) []string {
	var out []string
	m.withRoom(roomID, func(r *room) {
		for _, p := range r.participants {
			if p.UserID != excludeUserID {
				out = append(out, p.ConnID)
			}
		}
	})
	return out
}

// Target resolves a participant of the room to its connection id.
func (m *RoomManager) Target(roomID, userID string) (string, bool) {
	var connID string
	found := m.withRoom(roomID, func(r *room) {
		if idx := r.index(userID); idx >= 0 {
			connID = r.participants[idx].ConnID
		}
	})
	return connID, found && connID != ""
}

func (m *RoomManager) Participant(roomID, userID string) (domain.ParticipantInfo, bool) {
	var (
		info domain.ParticipantInfo
		ok   bool
	)
	m.withRoom(roomID, func(r *room) {
		if idx := r.index(userID); idx >= 0 {
			info, ok = r.participants[idx].Info(), true
		}
	})
	return info, ok
}

func (m *RoomManager) Snapshot(roomID string) (domain.RoomSnapshot, bool) {
	var snap domain.RoomSnapshot
	ok := m.withRoom(roomID, func(r *room) {
		snap = r.snapshot()
	})
	return snap, ok
}

// List returns snapshots of every live room ordered by id.
func (m *RoomManager) List() []domain.RoomSnapshot {
	m.mu.Lock()
	rooms := make([]*room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	out := make([]domain.RoomSnapshot, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		if !r.closed {
			out = append(out, r.snapshot())
		}
		r.mu.Unlock()
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

func (m *RoomManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// MediaState reports the room's router and whether media is degraded.
func (m *RoomManager) MediaState(roomID string) (session domain.RouterHandle, degraded bool, ok bool) {
	ok = m.withRoom(roomID, func(r *room) {
		session, degraded = r.session, r.degraded
	})
	return session, degraded, ok
}

// AttachSession stores h as the room's router unless another one won the
// race. It returns the router in effect and whether h was attached.
func (m *RoomManager) AttachSession(roomID string, h domain.RouterHandle) (domain.RouterHandle, bool, error) {
	var (
		current  domain.RouterHandle
		attached bool
	)
	ok := m.withRoom(roomID, func(r *room) {
		if r.session == "" {
			r.session = h
			attached = true
		}
		current = r.session
	})
	if !ok {
		return "", false, domain.Errorf(domain.CodeInvalidState, "room %q no longer exists", roomID)
	}
	return current, attached, nil
}

// MarkDegraded flags the room's media as unavailable. changed is false if it
// already was.
func (m *RoomManager) MarkDegraded(roomID string) (epoch, seq uint64, changed bool) {
	m.withRoom(roomID, func(r *room) {
		if !r.degraded {
			r.degraded = true
			r.seq++
			changed = true
		}
		epoch, seq = r.epoch, r.seq
	})
	return epoch, seq, changed
}

// Transport returns the participant's transport for dir, if any.
func (m *RoomManager) Transport(roomID, userID string, dir domain.TransportDirection) (string, bool) {
	var id string
	m.withRoom(roomID, func(r *room) {
		if idx := r.index(userID); idx >= 0 {
			id = r.participants[idx].Transports[dir]
		}
	})
	return id, id != ""
}

func (m *RoomManager) OwnsTransport(roomID, userID, transportID string) bool {
	var owns bool
	m.withRoom(roomID, func(r *room) {
		idx := r.index(userID)
		if idx < 0 {
			return
		}
		for _, id := range r.participants[idx].Transports {
			if id == transportID {
				owns = true
				return
			}
		}
	})
	return owns
}

// Producer returns the owner and kind of a producer published in the room.
func (m *RoomManager) Producer(roomID, producerID string) (owner string, kind domain.MediaKind, ok bool) {
	m.withRoom(roomID, func(r *room) {
		for _, p := range r.participants {
			if k, found := p.Producers[producerID]; found {
				owner, kind, ok = p.UserID, k, true
				return
			}
		}
	})
	return owner, kind, ok
}

// CommitMedia applies c to the participant bound to connID. It fails when
// that participant has left, in which case the caller owns the engine-side
// resources and must release them.
func (m *RoomManager) CommitMedia(roomID, userID, connID string, c MediaCommit) error {
	var err error
	ok := m.withRoom(roomID, func(r *room) {
		idx := r.index(userID)
		if idx < 0 || r.participants[idx].ConnID != connID {
			err = domain.Errorf(domain.CodeInvalidState, "participant %q left room %q", userID, roomID)
			return
		}
		p := r.participants[idx]
		if c.NewTransport {
			if existing := p.Transports[c.Direction]; existing != "" {
				err = domain.Errorf(domain.CodeInvalidState, "participant %q already has a %s transport", userID, c.Direction)
				return
			}
			p.Transports[c.Direction] = c.TransportID
		}
		if c.ProducerID != "" {
			p.Producers[c.ProducerID] = c.Kind
		}
	})
	if !ok {
		return domain.Errorf(domain.CodeInvalidState, "room %q no longer exists", roomID)
	}
	return err
}

func (m *RoomManager) get(roomID string) *room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[roomID]
}

// withRoom runs fn under the room lock. It reports false if the room does
// not exist or was closed meanwhile.
func (m *RoomManager) withRoom(roomID string, fn func(r *room)) bool {
	r := m.get(roomID)
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	fn(r)
	return true
}

// discardIfEmpty drops a room nobody made it into. The room lock is held.
func (m *RoomManager) discardIfEmpty(r *room) {
	if len(r.participants) > 0 {
		return
	}
	r.closed = true
	m.mu.Lock()
	if m.rooms[r.id] == r {
		delete(m.rooms, r.id)
	}
	m.mu.Unlock()
}

func (m *RoomManager) release(userID, roomID string) {
	m.mu.Lock()
	if m.members[userID] == roomID {
		delete(m.members, userID)
	}
	m.mu.Unlock()
}

func (r *room) index(userID string) int {
	for i, p := range r.participants {
		if p.UserID == userID {
			return i
		}
	}
	return -1
}

func (r *room) roster() []domain.ParticipantInfo {
	out := make([]domain.ParticipantInfo, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p.Info())
	}
	return out
}

func (r *room) snapshot() domain.RoomSnapshot {
	return domain.RoomSnapshot{
		ID:           r.id,
		Epoch:        r.epoch,
		Participants: r.roster(),
		Seq:          r.seq,
		CreatedAt:    r.createdAt,
		Degraded:     r.degraded,
		HasMedia:     r.session != "",
	}
}
