package service

import (
	"context"
	"errors"
	"testing"

	"github.com/immxrtalbeast/axenix_signal/internal/domain"
	"github.com/immxrtalbeast/axenix_signal/internal/media/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const router = domain.RouterHandle("router-1")

func newMediaEnv(t *testing.T) (*testEnv, *mocks.MockEngine) {
	t.Helper()
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	return newTestEnv(t, 0, Config{}, engine), engine
}

func TestMedia_ProduceConsumeConnect(t *testing.T) {
	env, engine := newMediaEnv(t)
	alice, aliceOut := env.join(t, "r1", "A")
	bob, bobOut := env.join(t, "r1", "B")

	gomock.InOrder(
		engine.EXPECT().CreateRouterForRoom(gomock.Any(), "r1").Return(router, nil),
		engine.EXPECT().CreateTransport(gomock.Any(), router, "A", domain.DirectionSend).
			Return(domain.TransportParams{ID: "t-send", Direction: domain.DirectionSend}, nil),
		engine.EXPECT().Produce(gomock.Any(), router, "t-send", domain.KindAudio).Return("p-audio", nil),
		engine.EXPECT().Produce(gomock.Any(), router, "t-send", domain.KindVideo).Return("p-video", nil),
	)

	env.send(t, alice, `{"type":"ProduceRequest","kind":"audio"}`)
	resp := aliceOut.last(t)
	assert.Equal(t, domain.TypeProduceResponse, resp.Type)
	assert.Equal(t, "t-send", resp.TransportID)
	assert.Equal(t, "p-audio", resp.ProducerID)
	assert.NotEmpty(t, resp.Transport)

	announced := bobOut.ofType(t, domain.TypeNewProducer)
	require.Len(t, announced, 1)
	assert.Equal(t, "A", announced[0].UserID)
	assert.Equal(t, "p-audio", announced[0].ProducerID)
	assert.Equal(t, domain.KindAudio, announced[0].Kind)
	assert.Empty(t, aliceOut.ofType(t, domain.TypeNewProducer))

	// the send transport is reused
	env.send(t, alice, `{"type":"ProduceRequest","kind":"video"}`)
	resp = aliceOut.last(t)
	assert.Equal(t, "p-video", resp.ProducerID)
	assert.Empty(t, resp.Transport)

	gomock.InOrder(
		engine.EXPECT().CreateTransport(gomock.Any(), router, "B", domain.DirectionRecv).
			Return(domain.TransportParams{ID: "t-recv", Direction: domain.DirectionRecv}, nil),
		engine.EXPECT().Consume(gomock.Any(), router, "t-recv", "p-audio").
			Return(domain.ConsumerParams{ID: "c1", ProducerID: "p-audio", Kind: domain.KindAudio}, nil),
		engine.EXPECT().ConnectTransport(gomock.Any(), router, "t-recv", gomock.Any()).Return(nil),
	)

	env.send(t, bob, `{"type":"ConsumeRequest","producerId":"p-audio"}`)
	consumed := bobOut.last(t)
	assert.Equal(t, domain.TypeConsumeResponse, consumed.Type)
	assert.Equal(t, "t-recv", consumed.TransportID)
	require.NotNil(t, consumed.Consumer)
	assert.Equal(t, "c1", consumed.Consumer.ID)

	env.send(t, bob, `{"type":"ConnectTransport","transportId":"t-recv","remote":{"iceParameters":{"usernameFragment":"u","password":"p"}}}`)
	connected := bobOut.last(t)
	assert.Equal(t, domain.TypeTransportConnected, connected.Type)
	assert.Equal(t, "t-recv", connected.TransportID)

	snap, _ := env.rooms.Snapshot("r1")
	assert.True(t, snap.HasMedia)
	assert.Len(t, snap.Participants[0].Producers, 2)

	// alice leaves: only her transport goes; bob leaves last: the router goes
	engine.EXPECT().CloseTransport(gomock.Any(), router, "t-send").Return(nil)
	env.sig.Close(alice.ID)
	engine.EXPECT().CloseRouter(gomock.Any(), router).Return(nil)
	env.sig.Close(bob.ID)
	assert.Equal(t, 0, env.rooms.Len())
}

func TestMedia_EngineUnavailableRetriesOnce(t *testing.T) {
	env, engine := newMediaEnv(t)
	alice, aliceOut := env.join(t, "r1", "A")

	gomock.InOrder(
		engine.EXPECT().CreateRouterForRoom(gomock.Any(), "r1").Return(domain.RouterHandle(""), domain.ErrEngineUnavailable),
		engine.EXPECT().CreateRouterForRoom(gomock.Any(), "r1").Return(router, nil),
		engine.EXPECT().CreateTransport(gomock.Any(), router, "A", domain.DirectionSend).
			Return(domain.TransportParams{ID: "t-send"}, nil),
		engine.EXPECT().Produce(gomock.Any(), router, "t-send", domain.KindAudio).Return("p1", nil),
	)

	env.send(t, alice, `{"type":"ProduceRequest","kind":"audio"}`)
	assert.Equal(t, domain.TypeProduceResponse, aliceOut.last(t).Type)

	snap, _ := env.rooms.Snapshot("r1")
	assert.False(t, snap.Degraded)
}

func TestMedia_BusyEngineIsNotRetried(t *testing.T) {
	env, engine := newMediaEnv(t)
	alice, aliceOut := env.join(t, "r1", "A")

	busy := domain.Wrap(domain.CodeResourceExhausted, "media engine busy", context.DeadlineExceeded)
	engine.EXPECT().CreateRouterForRoom(gomock.Any(), "r1").Return(domain.RouterHandle(""), busy).Times(1)

	env.send(t, alice, `{"type":"ProduceRequest","kind":"audio"}`)
	ev := aliceOut.last(t)
	assert.Equal(t, domain.TypeError, ev.Type)
	assert.Equal(t, domain.CodeResourceExhausted, ev.Code)
	assert.Equal(t, domain.TypeProduceRequest, ev.Ref)
	assert.False(t, aliceOut.isClosed())

	snap, _ := env.rooms.Snapshot("r1")
	assert.False(t, snap.Degraded)

	// the next request reaches the engine again
	gomock.InOrder(
		engine.EXPECT().CreateRouterForRoom(gomock.Any(), "r1").Return(router, nil),
		engine.EXPECT().CreateTransport(gomock.Any(), router, "A", domain.DirectionSend).
			Return(domain.TransportParams{ID: "t-send"}, nil),
		engine.EXPECT().Produce(gomock.Any(), router, "t-send", domain.KindAudio).Return("p1", nil),
	)
	env.send(t, alice, `{"type":"ProduceRequest","kind":"audio"}`)
	assert.Equal(t, domain.TypeProduceResponse, aliceOut.last(t).Type)
}

func TestMedia_EngineUnavailableDegradesRoom(t *testing.T) {
	env, engine := newMediaEnv(t)
	alice, aliceOut := env.join(t, "r1", "A")
	_, bobOut := env.join(t, "r1", "B")

	engine.EXPECT().CreateRouterForRoom(gomock.Any(), "r1").
		Return(domain.RouterHandle(""), domain.ErrEngineUnavailable).Times(2)

	env.send(t, alice, `{"type":"ProduceRequest","kind":"audio"}`)
	ev := aliceOut.last(t)
	assert.Equal(t, domain.TypeError, ev.Type)
	assert.Equal(t, domain.CodeEngineUnavailable, ev.Code)
	assert.Equal(t, domain.TypeProduceRequest, ev.Ref)

	snap, _ := env.rooms.Snapshot("r1")
	assert.True(t, snap.Degraded)
	assert.Equal(t, domain.StateJoined, alice.State())
	assert.False(t, aliceOut.isClosed())
	assert.False(t, bobOut.isClosed())

	// no further engine calls once degraded
	env.send(t, alice, `{"type":"ProduceRequest","kind":"video"}`)
	assert.Equal(t, domain.CodeEngineUnavailable, aliceOut.last(t).Code)

	// signaling keeps working
	env.send(t, alice, `{"type":"Chat","text":"still here"}`)
	assert.Equal(t, "still here", bobOut.last(t).Text)

	events, err := env.journal.ListByRoom(context.Background(), "r1")
	require.NoError(t, err)
	var degraded int
	for _, e := range events {
		if e.Kind == domain.RoomEventDegraded {
			degraded++
		}
	}
	assert.Equal(t, 1, degraded)
}

func TestMedia_FailedProduceReleasesTransport(t *testing.T) {
	env, engine := newMediaEnv(t)
	alice, aliceOut := env.join(t, "r1", "A")

	gomock.InOrder(
		engine.EXPECT().CreateRouterForRoom(gomock.Any(), "r1").Return(router, nil),
		engine.EXPECT().CreateTransport(gomock.Any(), router, "A", domain.DirectionSend).
			Return(domain.TransportParams{ID: "t-send"}, nil),
		engine.EXPECT().Produce(gomock.Any(), router, "t-send", domain.KindAudio).Return("", errors.New("track setup failed")),
		engine.EXPECT().CloseTransport(gomock.Any(), router, "t-send").Return(nil),
	)

	env.send(t, alice, `{"type":"ProduceRequest","kind":"audio"}`)
	ev := aliceOut.last(t)
	assert.Equal(t, domain.TypeError, ev.Type)
	assert.Equal(t, domain.CodeInternal, ev.Code)

	_, ok := env.rooms.Transport("r1", "A", domain.DirectionSend)
	assert.False(t, ok)
	snap, _ := env.rooms.Snapshot("r1")
	assert.Empty(t, snap.Participants[0].Producers)
	assert.False(t, snap.Degraded)
}

func TestMedia_Rejections(t *testing.T) {
	env, _ := newMediaEnv(t)
	alice, aliceOut := env.join(t, "r1", "A")

	viewer, viewerOut := env.connect(t, "r1", "V")
	env.send(t, viewer, `{"type":"Join","role":{"produce":false,"consume":true}}`)

	tests := []struct {
		name string
		conn string
		out  *fakeOutbox
		raw  string
		code domain.ErrorCode
	}{
		{"role forbids producing", viewer.ID, viewerOut, `{"type":"ProduceRequest","kind":"audio"}`, domain.CodeInvalidState},
		{"unknown producer", alice.ID, aliceOut, `{"type":"ConsumeRequest","producerId":"nope"}`, domain.CodeUnknownTarget},
		{"foreign transport", alice.ID, aliceOut, `{"type":"ConnectTransport","transportId":"t-x","remote":{}}`, domain.CodeUnknownTarget},
		{"bad kind", alice.ID, aliceOut, `{"type":"ProduceRequest","kind":"smell"}`, domain.CodeMalformedMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, env.sig.Handle(context.Background(), tt.conn, []byte(tt.raw)))
			ev := tt.out.last(t)
			assert.Equal(t, domain.TypeError, ev.Type)
			assert.Equal(t, tt.code, ev.Code)
		})
	}
}

func TestMedia_LostRouterRaceClosesLoser(t *testing.T) {
	env, engine := newMediaEnv(t)
	env.join(t, "r1", "A")

	_, _, err := env.rooms.AttachSession("r1", router)
	require.NoError(t, err)

	// a second creator loses to the attached router
	engine.EXPECT().CloseRouter(gomock.Any(), domain.RouterHandle("router-2")).Return(nil)
	current, attached, err := env.rooms.AttachSession("r1", "router-2")
	require.NoError(t, err)
	require.False(t, attached)
	env.sig.closeRouter("router-2")
	assert.Equal(t, router, current)

	session, err := env.sig.ensureSession(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, router, session)
}
