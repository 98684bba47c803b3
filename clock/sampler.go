package clock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEmptyZone is reported for an empty timezone identifier. time.LoadLocation
// would read "" as UTC, which hides a caller mistake.
var ErrEmptyZone = errors.New("empty timezone identifier")

// TimeParts is a 24-hour wall clock reading.
type TimeParts struct {
	Hours   int `yaml:"hours"`
	Minutes int `yaml:"minutes"`
	Seconds int `yaml:"seconds"`
}

// String formats the parts as HH:MM:SS.
func (tp TimeParts) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", tp.Hours, tp.Minutes, tp.Seconds)
}

// Reading is one sample of a zone's wall clock.
//
// Approximate is set when the zone could not be used and the local wall
// clock was read instead; Err says why.
type Reading struct {
	TimeParts
	Zone        string
	At          time.Time
	Approximate bool
	Err         error
}

// LocationLoader resolves a timezone identifier.
type LocationLoader func(name string) (*time.Location, error)

// LoadLocation is time.LoadLocation that refuses the empty identifier.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, ErrEmptyZone
	}
	return time.LoadLocation(name)
}

// Sample reads the wall clock of zone at now. It never fails: an unknown
// zone yields the local wall clock with Approximate set.
func Sample(now time.Time, zone string, load LocationLoader) Reading {
	if load == nil {
		load = LoadLocation
	}
	loc, err := load(zone)
	return sampleIn(now, zone, loc, err)
}

func sampleIn(now time.Time, zone string, loc *time.Location, err error) Reading {
	r := Reading{Zone: zone, At: now}
	if err == nil && loc == nil {
		err = fmt.Errorf("no location for timezone '%s'", zone)
	}
	if err != nil {
		r.Approximate = true
		r.Err = err
		loc = time.Local
	}
	r.Hours, r.Minutes, r.Seconds = now.In(loc).Clock()
	return r
}

// Sampler produces a Reading per interval for one zone at a time. It is
// owned by a single clock face; two faces never share a sampler.
type Sampler struct {
	id       string
	interval time.Duration
	now      func() time.Time
	load     LocationLoader
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithInterval sets the tick interval. Defaults to one second.
func WithInterval(d time.Duration) SamplerOption {
	return func(s *Sampler) { s.interval = d }
}

// WithTimeSource sets where "now" comes from.
func WithTimeSource(ts TimeSource) SamplerOption {
	return func(s *Sampler) { s.now = ts.Now }
}

// WithLoader replaces LoadLocation.
func WithLoader(load LocationLoader) SamplerOption {
	return func(s *Sampler) { s.load = load }
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *zap.Logger) SamplerOption {
	return func(s *Sampler) { s.logger = l }
}

// NewSampler returns an idle sampler.
func NewSampler(opts ...SamplerOption) *Sampler {
	s := &Sampler{
		id:       uuid.NewString(),
		interval: time.Second,
		now:      time.Now,
		load:     LoadLocation,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("sampler", s.id))
	return s
}

// ID identifies the sampler in logs.
func (s *Sampler) ID() string {
	return s.id
}

// Subscribe starts sampling zone and returns the channel readings arrive
// on. The first reading is sent immediately. Any previous subscription is
// cancelled, and its goroutine has exited, before the new one starts.
// The channel is closed when the subscription ends.
func (s *Sampler) Subscribe(ctx context.Context, zone string) <-chan Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Reading, 1)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.run(ctx, zone, out, done)
	return out
}

// Stop ends the current subscription, if any, and waits for it to finish.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Sampler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func (s *Sampler) run(ctx context.Context, zone string, out chan<- Reading, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	loc, loadErr := s.load(zone)
	failures := 0

	emit := func() bool {
		r := sampleIn(s.now(), zone, loc, loadErr)
		if r.Approximate {
			failures++
			level := zap.DebugLevel
			if failures == 1 {
				level = zap.WarnLevel
			}
			if ce := s.logger.Check(level, "timezone unavailable, using local time"); ce != nil {
				ce.Write(zap.String("zone", zone), zap.Int("failures", failures), zap.Error(r.Err))
			}
		}
		select {
		case out <- r:
			return true
		case <-ctx.Done():
			return false
		}
	}

	s.logger.Debug("sampler subscribed", zap.String("zone", zone), zap.Duration("interval", s.interval))
	if !emit() {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("sampler stopped", zap.String("zone", zone))
			return
		case <-ticker.C:
			if !emit() {
				return
			}
		}
	}
}
