package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage_Valid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want MessageType
	}{
		{"join", `{"type":"Join","role":{"produce":true,"consume":false}}`, TypeJoin},
		{"leave", `{"type":"Leave"}`, TypeLeave},
		{"offer string sdp", `{"type":"Offer","target":"b","sdp":"v=0"}`, TypeOffer},
		{"answer object sdp", `{"type":"Answer","target":"a","sdp":{"type":"answer","sdp":"v=0"}}`, TypeAnswer},
		{"candidate", `{"type":"IceCandidate","target":"a","candidate":{"candidate":"c"}}`, TypeIceCandidate},
		{"produce", `{"type":"ProduceRequest","kind":"audio"}`, TypeProduceRequest},
		{"consume", `{"type":"ConsumeRequest","producerId":"p1"}`, TypeConsumeRequest},
		{"connect", `{"type":"ConnectTransport","transportId":"t1","remote":{"dtlsParameters":{"role":"client","fingerprints":[]}}}`, TypeConnectTransport},
		{"chat", `{"type":"Chat","text":" hi "}`, TypeChat},
		{"client error", `{"type":"Error","code":"x","message":"boom"}`, TypeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Type)
			assert.Equal(t, tt.raw, string(msg.Raw()))
		})
	}
}

func TestDecodeMessage_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `hello`},
		{"no type", `{"target":"b"}`},
		{"unknown type", `{"type":"Dance"}`},
		{"outbound type", `{"type":"Roster"}`},
		{"offer without target", `{"type":"Offer","sdp":"v=0"}`},
		{"offer without sdp", `{"type":"Offer","target":"b"}`},
		{"offer empty sdp", `{"type":"Offer","target":"b","sdp":""}`},
		{"candidate null", `{"type":"IceCandidate","target":"b","candidate":null}`},
		{"bad kind", `{"type":"ProduceRequest","kind":"smell"}`},
		{"consume without producer", `{"type":"ConsumeRequest"}`},
		{"connect without remote", `{"type":"ConnectTransport","transportId":"t"}`},
		{"blank chat", `{"type":"Chat","text":"   "}`},
		{"long chat", `{"type":"Chat","text":"` + strings.Repeat("a", maxChatMessageLength+1) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedMessage), "got %v", err)
			assert.Equal(t, CodeMalformedMessage, CodeOf(err))
		})
	}
}

func TestDecodeMessage_ChatTrimmed(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"type":"Chat","text":"  hello  "}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)
}

func TestMessageType_Critical(t *testing.T) {
	assert.False(t, TypeOffer.Critical())
	assert.False(t, TypeIceCandidate.Critical())
	assert.False(t, TypeChat.Critical())
	assert.True(t, TypeRoster.Critical())
	assert.True(t, TypeParticipantLeft.Critical())
	assert.True(t, TypeError.Critical())
}

func TestErrorEvent(t *testing.T) {
	ev := ErrorEvent(Errorf(CodeUnknownTarget, "participant %q is not in room", "zed"), TypeOffer)
	assert.Equal(t, TypeError, ev.Type)
	assert.Equal(t, CodeUnknownTarget, ev.Code)
	assert.Equal(t, TypeOffer, ev.Ref)
	assert.Contains(t, ev.Message, "zed")

	ev = ErrorEvent(errors.New("disk on fire"), TypeJoin)
	assert.Equal(t, CodeInternal, ev.Code)
	assert.Equal(t, "internal error", ev.Message)
}

func TestErrorIsByCode(t *testing.T) {
	err := Wrap(CodeEngineUnavailable, "worker stopped", errors.New("eof"))
	assert.ErrorIs(t, err, ErrEngineUnavailable)
	assert.NotErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, 503, err.HTTPStatus())
}

func TestReplayMembers(t *testing.T) {
	events := []*RoomEvent{
		NewRoomEvent("r", 1, RoomEventJoined, "a"),
		NewRoomEvent("r", 2, RoomEventJoined, "b"),
		NewRoomEvent("r", 2, RoomEventChat, "a"),
		NewRoomEvent("r", 3, RoomEventLeft, "a"),
		NewRoomEvent("r", 4, RoomEventJoined, "c"),
	}
	assert.Equal(t, []string{"b", "c"}, ReplayMembers(events))
}
