package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/axenix_signal/internal/domain"
	"github.com/immxrtalbeast/axenix_signal/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

var errWorkerStopped = errors.New("media worker stopped")

type Config struct {
	ICEServers []webrtc.ICEServer
	// Pending commands before callers have to wait.
	QueueSize int
	// Upper bound for one call, queueing included. A live worker that misses
	// it reports itself busy, not unavailable.
	CallTimeout time.Duration
	// Upper bound for gathering local ICE candidates of a new transport.
	GatherTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 5 * time.Second
	}
	if c.GatherTimeout <= 0 {
		c.GatherTimeout = 3 * time.Second
	}
	return c
}

// PionEngine owns every router and transport on a single worker goroutine.
// Commands are closures executed in order by that goroutine; when it stops
// (context cancelled, Kill, or a panic) the engine is dead for good.
type PionEngine struct {
	cfg      Config
	api      *webrtc.API
	log      *slog.Logger
	commands chan func()
	done     chan struct{}

	mu       sync.Mutex
	err      error
	stopOnce sync.Once

	// worker-owned
	routers map[domain.RouterHandle]*mediaRouter
}

type mediaRouter struct {
	id         domain.RouterHandle
	roomID     string
	transports map[string]*pionTransport
	producers  map[string]*producer
}

type producer struct {
	kind      domain.MediaKind
	track     *webrtc.TrackLocalStaticRTP
	transport string
}

type pionTransport struct {
	id            string
	participantID string
	dir           domain.TransportDirection
	gatherer      *webrtc.ICEGatherer
	ice           *webrtc.ICETransport
	dtls          *webrtc.DTLSTransport
	connected     bool
}

func NewPionEngine(cfg Config, log *slog.Logger) (*PionEngine, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(m))

	return &PionEngine{
		cfg:      cfg,
		api:      api,
		log:      log.With(slog.String("component", "media")),
		commands: make(chan func(), cfg.QueueSize),
		done:     make(chan struct{}),
		routers:  make(map[domain.RouterHandle]*mediaRouter),
	}, nil
}

// Start launches the worker. The engine dies when ctx is cancelled.
func (e *PionEngine) Start(ctx context.Context) {
	go e.run(ctx)
	e.log.Info("media worker started")
}

func (e *PionEngine) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.die(fmt.Errorf("media worker panic: %v", r))
		}
		e.closeAll()
	}()

	for {
		select {
		case <-ctx.Done():
			e.die(fmt.Errorf("%w: %v", errWorkerStopped, ctx.Err()))
			return
		case <-e.done:
			return
		case cmd := <-e.commands:
			cmd()
		}
	}
}

// Kill stops the worker with cause.
func (e *PionEngine) Kill(cause error) {
	e.die(cause)
}

func (e *PionEngine) die(cause error) {
	e.stopOnce.Do(func() {
		if cause == nil {
			cause = errWorkerStopped
		}
		e.mu.Lock()
		e.err = cause
		e.mu.Unlock()
		close(e.done)
		e.log.Error("media worker died", sl.Err(cause))
	})
}

func (e *PionEngine) Done() <-chan struct{} {
	return e.done
}

func (e *PionEngine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *PionEngine) closeAll() {
	for id, r := range e.routers {
		for _, t := range r.transports {
			t.close()
		}
		delete(e.routers, id)
	}
}

func (e *PionEngine) unavailable(cause error) error {
	if cause == nil {
		cause = e.Err()
	}
	return domain.Wrap(domain.CodeEngineUnavailable, domain.ErrEngineUnavailable.Message, cause)
}

// busy reports a live worker that did not get to the call in time.
func busy(cause error) error {
	return domain.Wrap(domain.CodeResourceExhausted, "media engine busy", cause)
}

// call runs fn on the worker and waits for its result.
func call[T any](ctx context.Context, e *PionEngine, fn func() (T, error)) (T, error) {
	var zero T

	select {
	case <-e.done:
		return zero, e.unavailable(nil)
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	reply := make(chan result, 1)
	cmd := func() {
		v, err := fn()
		reply <- result{v: v, err: err}
	}

	select {
	case e.commands <- cmd:
	case <-e.done:
		return zero, e.unavailable(nil)
	case <-ctx.Done():
		return zero, busy(ctx.Err())
	}

	select {
	case r := <-reply:
		return r.v, r.err
	case <-e.done:
		return zero, e.unavailable(nil)
	case <-ctx.Done():
		return zero, busy(ctx.Err())
	}
}

func (e *PionEngine) CreateRouterForRoom(ctx context.Context, roomID string) (domain.RouterHandle, error) {
	return call(ctx, e, func() (domain.RouterHandle, error) {
		r := &mediaRouter{
			id:         domain.RouterHandle(uuid.New().String()),
			roomID:     roomID,
			transports: make(map[string]*pionTransport),
			producers:  make(map[string]*producer),
		}
		e.routers[r.id] = r
		e.log.Debug("router created", slog.String("room_id", roomID), slog.String("router_id", string(r.id)))
		return r.id, nil
	})
}

// CreateTransport gathers local candidates off the worker, then registers
// the transport with the router.
func (e *PionEngine) CreateTransport(ctx context.Context, router domain.RouterHandle, participantID string, dir domain.TransportDirection) (domain.TransportParams, error) {
	if _, err := call(ctx, e, func() (struct{}, error) {
		if _, ok := e.routers[router]; !ok {
			return struct{}{}, ErrUnknownRouter
		}
		return struct{}{}, nil
	}); err != nil {
		return domain.TransportParams{}, err
	}

	t, err := e.newTransport(participantID, dir)
	if err != nil {
		return domain.TransportParams{}, err
	}
	candidates, err := e.gather(ctx, t.gatherer)
	if err != nil {
		t.close()
		return domain.TransportParams{}, err
	}
	iceParams, err := t.gatherer.GetLocalParameters()
	if err != nil {
		t.close()
		return domain.TransportParams{}, fmt.Errorf("ice parameters: %w", err)
	}
	dtlsParams, err := t.dtls.GetLocalParameters()
	if err != nil {
		t.close()
		return domain.TransportParams{}, fmt.Errorf("dtls parameters: %w", err)
	}

	_, err = call(ctx, e, func() (struct{}, error) {
		r, ok := e.routers[router]
		if !ok {
			return struct{}{}, ErrUnknownRouter
		}
		r.transports[t.id] = t
		return struct{}{}, nil
	})
	if err != nil {
		t.close()
		return domain.TransportParams{}, err
	}

	return domain.TransportParams{
		ID:             t.id,
		Direction:      dir,
		ICEParameters:  iceParams,
		ICECandidates:  candidates,
		DTLSParameters: dtlsParams,
		ICEServers:     e.cfg.ICEServers,
	}, nil
}

func (e *PionEngine) newTransport(participantID string, dir domain.TransportDirection) (*pionTransport, error) {
	gatherer, err := e.api.NewICEGatherer(webrtc.ICEGatherOptions{ICEServers: e.cfg.ICEServers})
	if err != nil {
		return nil, fmt.Errorf("ice gatherer: %w", err)
	}
	ice := e.api.NewICETransport(gatherer)
	dtls, err := e.api.NewDTLSTransport(ice, nil)
	if err != nil {
		_ = gatherer.Close()
		return nil, fmt.Errorf("dtls transport: %w", err)
	}
	return &pionTransport{
		id:            uuid.New().String(),
		participantID: participantID,
		dir:           dir,
		gatherer:      gatherer,
		ice:           ice,
		dtls:          dtls,
	}, nil
}

// gather collects local candidates until gathering completes or
// GatherTimeout passes; in the latter case the candidates found so far are
// returned.
func (e *PionEngine) gather(ctx context.Context, g *webrtc.ICEGatherer) ([]webrtc.ICECandidate, error) {
	complete := make(chan struct{})
	var once sync.Once
	g.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			once.Do(func() { close(complete) })
		}
	})
	if err := g.Gather(); err != nil {
		return nil, fmt.Errorf("ice gather: %w", err)
	}

	timer := time.NewTimer(e.cfg.GatherTimeout)
	defer timer.Stop()
	select {
	case <-complete:
	case <-timer.C:
		e.log.Warn("ice gathering incomplete", slog.Duration("timeout", e.cfg.GatherTimeout))
	case <-e.done:
		return nil, e.unavailable(nil)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	candidates, err := g.GetLocalCandidates()
	if err != nil {
		return nil, fmt.Errorf("ice candidates: %w", err)
	}
	return candidates, nil
}

func (e *PionEngine) ConnectTransport(ctx context.Context, router domain.RouterHandle, transportID string, remote domain.RemoteTransportParams) error {
	_, err := call(ctx, e, func() (struct{}, error) {
		t, err := e.transport(router, transportID)
		if err != nil {
			return struct{}{}, err
		}
		if remote.ICEParameters == nil {
			return struct{}{}, domain.Errorf(domain.CodeMalformedMessage, "remote ice parameters are required")
		}
		if len(remote.ICECandidates) == 0 {
			return struct{}{}, domain.Errorf(domain.CodeMalformedMessage, "remote ice candidates are required")
		}
		if t.connected {
			return struct{}{}, domain.Errorf(domain.CodeInvalidState, "transport %s already connected", transportID)
		}
		if err := t.ice.SetRemoteCandidates(remote.ICECandidates); err != nil {
			return struct{}{}, domain.Wrap(domain.CodeMalformedMessage, "invalid remote ice candidates", err)
		}
		t.connected = true

		go e.start(t, *remote.ICEParameters, remote.DTLSParameters)
		return struct{}{}, nil
	})
	return err
}

// start blocks on ICE connectivity, so it runs off the worker. Local
// candidates were gathered when the transport was created.
func (e *PionEngine) start(t *pionTransport, ice webrtc.ICEParameters, dtls webrtc.DTLSParameters) {
	log := e.log.With(slog.String("transport_id", t.id))
	role := webrtc.ICERoleControlled
	if err := t.ice.Start(t.gatherer, ice, &role); err != nil {
		log.Warn("ice start failed", sl.Err(err))
		return
	}
	if err := t.dtls.Start(dtls); err != nil {
		log.Warn("dtls start failed", sl.Err(err))
		return
	}
	log.Debug("transport connected")
}

func (e *PionEngine) Produce(ctx context.Context, router domain.RouterHandle, transportID string, kind domain.MediaKind) (string, error) {
	return call(ctx, e, func() (string, error) {
		t, err := e.transport(router, transportID)
		if err != nil {
			return "", err
		}
		if t.dir != domain.DirectionSend {
			return "", ErrWrongDirection
		}

		id := uuid.New().String()
		track, err := webrtc.NewTrackLocalStaticRTP(codecFor(kind), id, t.participantID)
		if err != nil {
			return "", fmt.Errorf("track: %w", err)
		}
		e.routers[router].producers[id] = &producer{kind: kind, track: track, transport: t.id}
		return id, nil
	})
}

func (e *PionEngine) Consume(ctx context.Context, router domain.RouterHandle, transportID string, producerID string) (domain.ConsumerParams, error) {
	return call(ctx, e, func() (domain.ConsumerParams, error) {
		t, err := e.transport(router, transportID)
		if err != nil {
			return domain.ConsumerParams{}, err
		}
		if t.dir != domain.DirectionRecv {
			return domain.ConsumerParams{}, ErrWrongDirection
		}
		p, ok := e.routers[router].producers[producerID]
		if !ok {
			return domain.ConsumerParams{}, ErrUnknownProducer
		}
		return domain.ConsumerParams{
			ID:         uuid.New().String(),
			ProducerID: producerID,
			Kind:       p.kind,
			Codec:      p.track.Codec(),
		}, nil
	})
}

func (e *PionEngine) CloseTransport(ctx context.Context, router domain.RouterHandle, transportID string) error {
	_, err := call(ctx, e, func() (struct{}, error) {
		t, err := e.transport(router, transportID)
		if err != nil {
			return struct{}{}, err
		}
		r := e.routers[router]
		for id, p := range r.producers {
			if p.transport == t.id {
				delete(r.producers, id)
			}
		}
		delete(r.transports, t.id)
		t.close()
		return struct{}{}, nil
	})
	return err
}

func (e *PionEngine) CloseRouter(ctx context.Context, router domain.RouterHandle) error {
	_, err := call(ctx, e, func() (struct{}, error) {
		r, ok := e.routers[router]
		if !ok {
			return struct{}{}, ErrUnknownRouter
		}
		for _, t := range r.transports {
			t.close()
		}
		delete(e.routers, router)
		e.log.Debug("router closed", slog.String("room_id", r.roomID), slog.String("router_id", string(router)))
		return struct{}{}, nil
	})
	return err
}

func (e *PionEngine) transport(router domain.RouterHandle, transportID string) (*pionTransport, error) {
	r, ok := e.routers[router]
	if !ok {
		return nil, ErrUnknownRouter
	}
	t, ok := r.transports[transportID]
	if !ok {
		return nil, ErrUnknownTransport
	}
	return t, nil
}

func (t *pionTransport) close() {
	_ = t.dtls.Stop()
	_ = t.ice.Stop()
	_ = t.gatherer.Close()
}

func codecFor(kind domain.MediaKind) webrtc.RTPCodecCapability {
	if kind == domain.KindVideo {
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
}
