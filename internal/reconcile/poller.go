package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/jebisys/switchboard/internal/device"
	"github.com/jebisys/switchboard/internal/schedule"
	"go.uber.org/zap"
)

// Poller periodically enforces schedules on every configured relay. It
// tracks the last action it commanded per device rather than re-reading
// hardware state each tick, so a manual toggle between ticks survives until
// the next schedule boundary or day rollover.
type Poller struct {
	store    ScheduleStore
	driver   device.Driver
	policy   schedule.Policy
	interval time.Duration
	logger   *zap.Logger

	lastCommanded map[string]device.Action
	lastDay       string // YYYY-MM-DD of the previous tick

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewPoller(store ScheduleStore, driver device.Driver, policy schedule.Policy, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		store:         store,
		driver:        driver,
		policy:        policy,
		interval:      interval,
		logger:        logger,
		lastCommanded: make(map[string]device.Action),
		stopCh:        make(chan struct{}),
	}
}

func (p *Poller) Start() {
	p.wg.Add(1)
	go p.run()
	p.logger.Info("schedule poller started", zap.Duration("interval", p.interval))
}

func (p *Poller) Stop() {
	close(p.stopCh)
	p.wg.Wait()
	p.logger.Info("schedule poller stopped")
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Tick(context.Background(), time.Now())
	for {
		select {
		case <-p.stopCh:
			return
		case now := <-ticker.C:
			p.Tick(context.Background(), now)
		}
	}
}

// Tick evaluates all schedules at the given instant and issues whatever
// commands are due. Exported so the tick logic is callable directly.
func (p *Poller) Tick(ctx context.Context, now time.Time) {
	schedules, err := p.store.GetAllSchedules(ctx)
	if err != nil {
		p.logger.Error("failed to load schedules", zap.Error(err))
		return
	}

	day := now.Format("2006-01-02")
	// On day rollover re-assert every active schedule even if the command
	// looks redundant: overnight windows and external toggles both make the
	// remembered state stale across midnight.
	dayRolled := p.lastDay != "" && p.lastDay != day
	p.lastDay = day

	for _, deviceID := range p.driver.Devices() {
		decision := schedule.Evaluate(windowOf(schedules[deviceID]), now, p.policy)
		last, known := p.lastCommanded[deviceID]

		switch decision {
		case schedule.ShouldBeOn:
			if !known || last != device.ActionOn || dayRolled {
				p.command(ctx, deviceID, device.ActionOn)
			}
		case schedule.ShouldBeOff:
			if !known || last != device.ActionOff || dayRolled {
				p.command(ctx, deviceID, device.ActionOff)
			}
		case schedule.NotApplicable:
			// A deleted or disabled schedule must not strand a relay on.
			if known && last == device.ActionOn {
				p.command(ctx, deviceID, device.ActionOff)
			}
		}
	}
}

func (p *Poller) command(ctx context.Context, deviceID string, action device.Action) {
	result, err := p.driver.SetState(ctx, deviceID, action)
	p.store.LogActivation(ctx, deviceID, string(action), nil, nil, true, result.Success)
	if err != nil {
		// Leave lastCommanded untouched so the next tick retries.
		p.logger.Error("scheduled toggle failed",
			zap.String("device_id", deviceID),
			zap.String("action", string(action)),
			zap.Error(err))
		return
	}

	p.lastCommanded[deviceID] = action
	p.logger.Info("scheduled toggle",
		zap.String("device_id", deviceID),
		zap.String("action", string(action)))
}
