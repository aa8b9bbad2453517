package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/zonebook/zonebook-go/internal/platform/logger"
)

// Poller refreshes the notification cache in the background on a cron
// schedule, with a channel for immediate manual triggers.
type Poller struct {
	sync     *Synchronizer
	cron     *cron.Cron
	log      logger.Logger
	schedule string

	trigger chan struct{}
	stop    chan struct{}

	mu      sync.Mutex
	running bool
}

// NewPoller creates a poller with a cron schedule such as "@every 1m".
// The schedule is registered once here so Start/Stop cycles never
// stack duplicate jobs.
func NewPoller(s *Synchronizer, schedule string, log logger.Logger) (*Poller, error) {
	p := &Poller{
		sync:     s,
		cron:     cron.New(),
		log:      log,
		schedule: schedule,
		trigger:  make(chan struct{}, 1),
	}
	if _, err := p.cron.AddFunc(schedule, p.Trigger); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Start begins background refreshing. Idempotent, and usable again
// after Stop.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	p.running = true
	p.stop = make(chan struct{})
	p.cron.Start()
	go p.run(p.stop)
	return nil
}

// Trigger requests an immediate refresh without blocking. Triggers
// arriving while one is queued coalesce.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Stop halts background refreshing and waits for the scheduled jobs
// to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.stop)
	<-p.cron.Stop().Done()
}

func (p *Poller) run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-p.trigger:
			if err := p.sync.Refresh(context.Background()); err != nil {
				p.log.Warn("background refresh failed", "error", err)
			}
		}
	}
}
