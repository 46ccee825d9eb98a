package transport

import (
	"encoding/json"
	"testing"

	"github.com/immxrtalbeast/axenix_signal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t domain.MessageType, body string) Frame {
	return Frame{Type: t, Data: []byte(body)}
}

func popAll(q *Queue) []Frame {
	var out []Frame
	for {
		f, ok := q.Pop()
		if !ok {
			return out
		}
		out = append(out, f)
	}
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(4, nil)
	require.True(t, q.Push(frame(domain.TypeRoster, "1")))
	require.True(t, q.Push(frame(domain.TypeOffer, "2")))
	require.True(t, q.Push(frame(domain.TypeParticipantJoined, "3")))

	got := popAll(q)
	require.Len(t, got, 3)
	assert.Equal(t, "1", string(got[0].Data))
	assert.Equal(t, "2", string(got[1].Data))
	assert.Equal(t, "3", string(got[2].Data))
	assert.Zero(t, q.Dropped())
}

func TestQueue_OverflowDropsOldestNonCritical(t *testing.T) {
	drops := 0
	q := NewQueue(3, func() { drops++ })
	q.Push(frame(domain.TypeRoster, "roster"))
	q.Push(frame(domain.TypeOffer, "offer-1"))
	q.Push(frame(domain.TypeIceCandidate, "cand-1"))

	require.True(t, q.Push(frame(domain.TypeParticipantJoined, "joined")))

	got := popAll(q)
	require.Len(t, got, 4)

	assert.Equal(t, domain.TypeResourceExhausted, got[0].Type)
	var notice domain.Event
	require.NoError(t, json.Unmarshal(got[0].Data, &notice))
	assert.Equal(t, domain.CodeResourceExhausted, notice.Code)
	assert.Equal(t, 1, notice.Dropped)

	assert.Equal(t, "roster", string(got[1].Data))
	assert.Equal(t, "cand-1", string(got[2].Data))
	assert.Equal(t, "joined", string(got[3].Data))
	assert.Equal(t, 1, drops)
	assert.Equal(t, uint64(1), q.Dropped())
}

func TestQueue_AllCriticalDropsIncomingNonCritical(t *testing.T) {
	q := NewQueue(2, nil)
	q.Push(frame(domain.TypeRoster, "a"))
	q.Push(frame(domain.TypeParticipantJoined, "b"))

	assert.False(t, q.Push(frame(domain.TypeOffer, "offer")))

	got := popAll(q)
	require.Len(t, got, 3)
	assert.Equal(t, domain.TypeResourceExhausted, got[0].Type)
	assert.Equal(t, "a", string(got[1].Data))
	assert.Equal(t, "b", string(got[2].Data))
}

func TestQueue_AllCriticalEvictsOldest(t *testing.T) {
	q := NewQueue(2, nil)
	q.Push(frame(domain.TypeRoster, "a"))
	q.Push(frame(domain.TypeParticipantJoined, "b"))

	assert.True(t, q.Push(frame(domain.TypeParticipantLeft, "c")))

	got := popAll(q)
	require.Len(t, got, 3)
	assert.Equal(t, "b", string(got[1].Data))
	assert.Equal(t, "c", string(got[2].Data))
}

func TestQueue_NoticesCoalesce(t *testing.T) {
	q := NewQueue(1, nil)
	q.Push(frame(domain.TypeOffer, "1"))
	q.Push(frame(domain.TypeOffer, "2"))
	q.Push(frame(domain.TypeOffer, "3"))
	q.Push(frame(domain.TypeOffer, "4"))

	got := popAll(q)
	require.Len(t, got, 2)
	var notice domain.Event
	require.NoError(t, json.Unmarshal(got[0].Data, &notice))
	assert.Equal(t, 3, notice.Dropped)
	assert.Equal(t, "4", string(got[1].Data))
}

func TestQueue_CloseRejectsButDrains(t *testing.T) {
	q := NewQueue(4, nil)
	q.Push(frame(domain.TypeRoster, "a"))
	q.Close()

	assert.False(t, q.Push(frame(domain.TypeRoster, "b")))
	got := popAll(q)
	require.Len(t, got, 1)
	assert.Equal(t, "a", string(got[0].Data))
}

func TestQueue_ReadySignalled(t *testing.T) {
	q := NewQueue(4, nil)
	q.Push(frame(domain.TypeRoster, "a"))
	select {
	case <-q.Ready():
	default:
		t.Fatal("ready not signalled")
	}
}
