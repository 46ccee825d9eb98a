package registry

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/immxrtalbeast/axenix_signal/internal/domain"
	"github.com/immxrtalbeast/axenix_signal/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopOutbox struct{}

func (nopOutbox) Send(transport.Frame) bool { return true }
func (nopOutbox) Close()                    {}

func TestRegister_DuplicateIdentitySameRoom(t *testing.T) {
	r := New(nil, nil)

	id, err := r.Register(NewConnection("r1", "alice", nopOutbox{}))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = r.Register(NewConnection("r1", "alice", nopOutbox{}))
	require.ErrorIs(t, err, domain.ErrDuplicateIdentity)

	_, err = r.Register(NewConnection("r2", "alice", nopOutbox{}))
	require.NoError(t, err, "same user in another room is a registry-level non-conflict")
	assert.Equal(t, 2, r.Len())
}

func TestUnregister_IdempotentHookOnce(t *testing.T) {
	var calls atomic.Int32
	var seenPresent bool
	var r *Registry
	r = New(func(c *Connection) {
		calls.Add(1)
		seenPresent = r.Lookup(c.ID) != nil
	}, nil)

	conn := NewConnection("r1", "alice", nopOutbox{})
	id, err := r.Register(conn)
	require.NoError(t, err)

	r.Unregister(id)
	r.Unregister(id)
	r.Unregister("missing")

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, seenPresent, "connection must stay visible until cleanup finished")
	assert.Nil(t, r.Lookup(id))
	assert.Zero(t, r.Len())

	_, err = r.Register(NewConnection("r1", "alice", nopOutbox{}))
	require.NoError(t, err, "identity released after unregister")
}

func TestUnregister_ConcurrentCallsRunHookOnce(t *testing.T) {
	var calls atomic.Int32
	r := New(func(*Connection) { calls.Add(1) }, nil)
	id, err := r.Register(NewConnection("r1", "alice", nopOutbox{}))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Unregister(id)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestLookup_ConsistentDuringChurn(t *testing.T) {
	r := New(nil, nil)
	stable := NewConnection("r1", "stable", nopOutbox{})
	_, err := r.Register(stable)
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c := NewConnection("r1", "churn", nopOutbox{})
			if _, err := r.Register(c); err == nil {
				r.Unregister(c.ID)
			}
		}
		close(stop)
	}()

	for {
		select {
		case <-stop:
			wg.Wait()
			assert.Same(t, stable, r.Lookup(stable.ID))
			return
		default:
			got := r.Lookup(stable.ID)
			require.NotNil(t, got)
			assert.Equal(t, "stable", got.UserID)
		}
	}
}

func TestConnectionState(t *testing.T) {
	c := NewConnection("r1", "alice", nopOutbox{})
	assert.Equal(t, domain.StateConnecting, c.State())
	assert.True(t, c.CompareAndSwapState(domain.StateConnecting, domain.StateJoined))
	assert.False(t, c.CompareAndSwapState(domain.StateConnecting, domain.StateJoined))
	assert.Equal(t, domain.StateJoined, c.SwapState(domain.StateClosed))
	assert.Equal(t, domain.StateClosed, c.State())
}

func TestInRoom(t *testing.T) {
	r := New(nil, nil)
	_, _ = r.Register(NewConnection("r1", "a", nopOutbox{}))
	_, _ = r.Register(NewConnection("r1", "b", nopOutbox{}))
	_, _ = r.Register(NewConnection("r2", "c", nopOutbox{}))
	assert.Len(t, r.InRoom("r1"), 2)
	assert.Len(t, r.InRoom("r3"), 0)
}
