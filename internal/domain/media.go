package domain

import "github.com/pion/webrtc/v3"

type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool {
	return k == KindAudio || k == KindVideo
}

// RouterHandle identifies the engine-side media router serving one room.
type RouterHandle string

// TransportParams is what a client needs to connect to an engine transport.
type TransportParams struct {
	ID             string                `json:"id"`
	Direction      TransportDirection    `json:"direction"`
	ICEParameters  webrtc.ICEParameters  `json:"iceParameters"`
	ICECandidates  []webrtc.ICECandidate `json:"iceCandidates,omitempty"`
	DTLSParameters webrtc.DTLSParameters `json:"dtlsParameters"`
	ICEServers     []webrtc.ICEServer    `json:"iceServers,omitempty"`
}

// RemoteTransportParams is the client half supplied on ConnectTransport.
type RemoteTransportParams struct {
	ICEParameters  *webrtc.ICEParameters `json:"iceParameters,omitempty"`
	ICECandidates  []webrtc.ICECandidate `json:"iceCandidates,omitempty"`
	DTLSParameters webrtc.DTLSParameters `json:"dtlsParameters"`
}

type ConsumerParams struct {
	ID         string                    `json:"id"`
	ProducerID string                    `json:"producerId"`
	Kind       MediaKind                 `json:"kind"`
	Codec      webrtc.RTPCodecCapability `json:"codec"`
}
