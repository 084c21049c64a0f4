// Package announce serializes text-to-speech announcements onto the single
// shared audio channel: strict FIFO, at most one playing at a time,
// cache-first resolution, and a safety cutoff so a stuck playback can never
// deadlock the channel.
package announce

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ruteravelar/filavoz/internal/audiocache"
	"github.com/ruteravelar/filavoz/internal/models"
	"github.com/ruteravelar/filavoz/internal/synth"
)

// AudioCache is the artifact cache the pipeline resolves against.
type AudioCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, audio []byte) error
	ArtifactURL(key string) string
}

// Config tunes the pipeline. Zero values fall back to sane defaults.
type Config struct {
	QueueSize    int
	MaxPlayback  time.Duration // per-repetition safety cutoff
	SynthTimeout time.Duration // cache lookup + synthesis cutoff
	DefaultVoice string
	DefaultRate  float64
	DefaultPitch float64
}

type Pipeline struct {
	synth  synth.Synthesizer
	cache  AudioCache
	player Player
	cfg    Config

	requests chan models.AnnouncementRequest
	pending  sync.WaitGroup

	busyMu sync.Mutex
	busyN  int

	cancelMu  sync.Mutex
	cancelled map[uuid.UUID]struct{}

	quit     chan struct{}
	done     chan struct{}
	quitOnce sync.Once
}

func NewPipeline(s synth.Synthesizer, cache AudioCache, player Player, cfg Config) *Pipeline {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.MaxPlayback <= 0 {
		cfg.MaxPlayback = 30 * time.Second
	}
	if cfg.SynthTimeout <= 0 {
		cfg.SynthTimeout = 30 * time.Second
	}
	if cfg.DefaultRate <= 0 {
		cfg.DefaultRate = 1.0
	}

	p := &Pipeline{
		synth:     s,
		cache:     cache,
		player:    player,
		cfg:       cfg,
		requests:  make(chan models.AnnouncementRequest, cfg.QueueSize),
		cancelled: make(map[uuid.UUID]struct{}),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go p.loop()
	return p
}

// Enqueue submits a request and returns immediately. When the queue is full
// the request is dropped with a warning rather than blocking the caller.
func (p *Pipeline) Enqueue(req models.AnnouncementRequest) {
	if req.Text == "" {
		return
	}
	if req.Voice == "" {
		req.Voice = p.cfg.DefaultVoice
	}
	if req.SpeakingRate <= 0 {
		req.SpeakingRate = p.cfg.DefaultRate
	}

	p.addBusy(1)
	select {
	case p.requests <- req:
	case <-p.quit:
		p.addBusy(-1)
	default:
		p.addBusy(-1)
		slog.Warn("announcement queue full, dropping", "source", req.Source, "text", req.Text)
	}
}

// Busy reports whether anything is queued or currently playing.
func (p *Pipeline) Busy() bool {
	p.busyMu.Lock()
	defer p.busyMu.Unlock()
	return p.busyN > 0
}

// CancelPatient suppresses any still-queued announcement for a patient, used
// by finish-without-call.
func (p *Pipeline) CancelPatient(id uuid.UUID) {
	p.cancelMu.Lock()
	defer p.cancelMu.Unlock()
	p.cancelled[id] = struct{}{}
}

// Close drains nothing: it stops the loop after the in-flight request and
// releases the channel.
func (p *Pipeline) Close() {
	p.quitOnce.Do(func() { close(p.quit) })
	<-p.done
}

func (p *Pipeline) addBusy(delta int) {
	p.busyMu.Lock()
	p.busyN += delta
	p.busyMu.Unlock()
}

func (p *Pipeline) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.quit:
			return
		case req := <-p.requests:
			p.process(req)
		}
	}
}

func (p *Pipeline) process(req models.AnnouncementRequest) {
	defer p.addBusy(-1)

	if req.PatientID != nil && p.takeCancelled(*req.PatientID) {
		slog.Info("announcement suppressed", "patient_id", req.PatientID, "source", req.Source)
		return
	}

	// Resolution is bounded so a hung cache or synthesis backend releases
	// the channel instead of blocking every later announcement.
	ctx, cancelResolve := context.WithTimeout(context.Background(), p.cfg.SynthTimeout)
	defer cancelResolve()
	key := audiocache.Key(req.Text, req.Voice, req.SpeakingRate)

	audio, err := p.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, audiocache.ErrMiss) {
			slog.Warn("cache read failed, synthesizing directly", "error", err, "key", key)
		}

		res, synthErr := p.synth.Synthesize(ctx, synth.Request{
			Text:         req.Text,
			Voice:        req.Voice,
			SpeakingRate: req.SpeakingRate,
			Pitch:        p.cfg.DefaultPitch,
		})
		if synthErr != nil {
			// Drop and move on; the channel must not block on one bad request.
			slog.Error("synthesis failed, dropping announcement", "error", synthErr, "text", req.Text)
			return
		}
		audio = res.Audio

		// Populate the cache off the playback path. A write failure only
		// costs a future synthesis call.
		go func() {
			putCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if putErr := p.cache.Put(putCtx, key, audio); putErr != nil {
				slog.Warn("cache write failed, playback unaffected", "error", putErr, "key", key)
			}
		}()
	}

	artifact := Artifact{
		Key:         key,
		Text:        req.Text,
		Audio:       audio,
		URL:         p.cache.ArtifactURL(key),
		ContentType: "audio/mpeg",
	}

	repeats := req.Repeat
	if repeats < 1 {
		repeats = 1
	}
	for i := 0; i < repeats; i++ {
		playCtx, cancel := context.WithTimeout(context.Background(), p.cfg.MaxPlayback)
		playErr := p.player.Play(playCtx, artifact)
		cancel()
		if playErr != nil {
			slog.Warn("playback interrupted", "error", playErr, "key", key, "repetition", i+1)
			break
		}
	}
}

func (p *Pipeline) takeCancelled(id uuid.UUID) bool {
	p.cancelMu.Lock()
	defer p.cancelMu.Unlock()
	if _, ok := p.cancelled[id]; ok {
		delete(p.cancelled, id)
		return true
	}
	return false
}
