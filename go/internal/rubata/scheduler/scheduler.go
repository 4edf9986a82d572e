// Package scheduler turns session deadlines into timeout callbacks. Every
// session has at most one one-shot timer; when it fires the session id is
// queued for a worker pool that calls the registered handler.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/timer"
	"github.com/rs/zerolog/log"
)

// Handler processes a fired deadline. It must re-check the deadline itself,
// wakeups can be stale.
type Handler func(ctx context.Context, sessionID uuid.UUID) error

type Config struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 64}
}

type activeTimer struct {
	timer clockwork.Timer
	stop  chan struct{}
}

type Scheduler struct {
	clock      timer.Clock
	instanceID string
	numWorkers int
	workCh     chan uuid.UUID
	done       chan struct{}
	doneOnce   sync.Once

	activeTimers   map[uuid.UUID]*activeTimer
	activeTimersMu sync.Mutex

	// inFlight tracks sessions a worker is handling; rerun records wakeups
	// that arrived meanwhile so they are handled once more instead of lost.
	inFlight   map[uuid.UUID]bool
	rerun      map[uuid.UUID]bool
	inFlightMu sync.Mutex
}

func New(clock timer.Clock, cfg Config) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	return &Scheduler{
		clock:        clock,
		instanceID:   uuid.New().String()[:8],
		numWorkers:   cfg.Workers,
		workCh:       make(chan uuid.UUID, cfg.QueueSize),
		done:         make(chan struct{}),
		activeTimers: make(map[uuid.UUID]*activeTimer),
		inFlight:     make(map[uuid.UUID]bool),
		rerun:        make(map[uuid.UUID]bool),
	}
}

// Schedule arms the session's timer for at, replacing any previous one. A
// deadline already in the past is queued immediately. Schedule never blocks:
// callers hold the session lock.
func (s *Scheduler) Schedule(sessionID uuid.UUID, at time.Time) {
	duration := at.Sub(s.clock.Now())
	if duration <= 0 {
		s.cancelTimer(sessionID)
		go s.enqueue(sessionID)
		return
	}

	armed := &activeTimer{
		timer: s.clock.NewTimer(duration),
		stop:  make(chan struct{}),
	}
	s.replaceTimer(sessionID, armed)

	go func(id uuid.UUID, a *activeTimer) {
		select {
		case <-a.timer.Chan():
			s.removeTimer(id, a)
			s.enqueue(id)
		case <-a.stop:
		case <-s.done:
			stopAndDrainTimer(a.timer)
		}
	}(sessionID, armed)

	log.Debug().
		Str("session_id", sessionID.String()).
		Time("deadline", at).
		Dur("duration", duration).
		Msg("scheduled one-shot timer")
}

// Cancel disarms the session's timer, if any.
func (s *Scheduler) Cancel(sessionID uuid.UUID) {
	s.cancelTimer(sessionID)
}

// Pending is the number of armed timers.
func (s *Scheduler) Pending() int {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()
	return len(s.activeTimers)
}

// enqueue waits for room in the work channel. A dropped wakeup would leave the
// session stuck past its deadline until the next command.
func (s *Scheduler) enqueue(id uuid.UUID) {
	select {
	case s.workCh <- id:
		log.Debug().Str("session_id", id.String()).Msg("timer fired - enqueued for processing")
		return
	default:
	}

	log.Warn().Str("session_id", id.String()).Msg("work channel full, waiting for a worker")
	select {
	case s.workCh <- id:
	case <-s.done:
	}
}

func (s *Scheduler) replaceTimer(id uuid.UUID, next *activeTimer) {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()

	if existing, ok := s.activeTimers[id]; ok {
		stopAndDrainTimer(existing.timer)
		close(existing.stop)
	}
	s.activeTimers[id] = next
}

func (s *Scheduler) cancelTimer(id uuid.UUID) {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()

	if existing, ok := s.activeTimers[id]; ok {
		stopAndDrainTimer(existing.timer)
		close(existing.stop)
		delete(s.activeTimers, id)
		log.Debug().Str("session_id", id.String()).Msg("cancelled existing timer")
	}
}

// removeTimer forgets a fired timer unless it was already replaced.
func (s *Scheduler) removeTimer(id uuid.UUID, fired *activeTimer) {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()
	if s.activeTimers[id] == fired {
		delete(s.activeTimers, id)
	}
}

func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}

// Run starts the worker pool and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context, handler Handler) error {
	log.Info().
		Str("instance", s.instanceID).
		Int("workers", s.numWorkers).
		Msg("rubata scheduler started")

	var wg sync.WaitGroup
	for i := 0; i < s.numWorkers; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, i, handler)
	}

	<-ctx.Done()
	log.Info().Str("instance", s.instanceID).Msg("scheduler shutdown requested")

	s.doneOnce.Do(func() { close(s.done) })
	wg.Wait()

	s.activeTimersMu.Lock()
	for id, a := range s.activeTimers {
		stopAndDrainTimer(a.timer)
		log.Debug().Str("session_id", id.String()).Msg("cancelled timer on shutdown")
	}
	s.activeTimers = make(map[uuid.UUID]*activeTimer)
	s.activeTimersMu.Unlock()

	log.Info().Str("instance", s.instanceID).Msg("all workers shut down")
	return nil
}

func (s *Scheduler) worker(ctx context.Context, wg *sync.WaitGroup, workerID int, handler Handler) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.workCh:
			if !s.claim(id) {
				continue
			}
			for {
				if err := handler(ctx, id); err != nil {
					log.Error().
						Err(err).
						Str("session_id", id.String()).
						Str("instance", s.instanceID).
						Int("worker_id", workerID).
						Msg("timeout handling failed")
				}
				if !s.release(id) {
					break
				}
			}
		}
	}
}

func (s *Scheduler) claim(id uuid.UUID) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if s.inFlight[id] {
		s.rerun[id] = true
		return false
	}
	s.inFlight[id] = true
	return true
}

// release reports whether the worker should handle id again.
func (s *Scheduler) release(id uuid.UUID) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if s.rerun[id] {
		delete(s.rerun, id)
		return true
	}
	delete(s.inFlight, id)
	return false
}
