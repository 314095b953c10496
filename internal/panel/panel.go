package panel

import (
	"fmt"
	"sync"
	"time"

	"spc2mqtt/internal/config"
	"spc2mqtt/internal/log"
	"spc2mqtt/internal/metrics"
	"spc2mqtt/internal/spc"
)

// Panel drives the poll → diff → publish cycle. It owns the SPC client,
// keeps the previous snapshot, and emits typed events for every change on
// a channel the MQTT layer consumes. A failed poll is a skipped cycle,
// never a crash.
type Panel struct {
	config *config.Config
	log    *log.Logger
	client *spc.Client

	mu     sync.Mutex
	status *spc.Status

	events   chan interface{}
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewPanel(cfg *config.Config, logger *log.Logger) (*Panel, error) {
	client, err := spc.New(&cfg.SPC, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create SPC client: %v", err)
	}
	return &Panel{
		config:   cfg,
		log:      logger,
		client:   client,
		events:   make(chan interface{}, 100),
		stopChan: make(chan struct{}),
	}, nil
}

func (p *Panel) Client() *spc.Client {
	return p.client
}

// Events delivers change events. The channel closes on Stop.
func (p *Panel) Events() <-chan interface{} {
	return p.events
}

// SetCachedStatus seeds the diff baseline from a warm-start snapshot so a
// restart does not republish every retained value.
func (p *Panel) SetCachedStatus(status *spc.Status) {
	p.mu.Lock()
	p.status = status
	p.mu.Unlock()
	p.client.Prime(status)
}

// Status returns the most recent snapshot.
func (p *Panel) Status() *spc.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == nil {
		return &spc.Status{}
	}
	return p.status
}

// Start performs the initial fetch (publishing everything not covered by
// the warm-start baseline) and launches the poll loop.
func (p *Panel) Start() error {
	p.log.Info("Starting panel polling...")

	status, err := p.client.Fetch()
	if err != nil {
		return fmt.Errorf("initial fetch failed: %v", err)
	}
	metrics.Polls.Inc()
	metrics.LastPoll.SetToCurrentTime()
	p.log.Info("Initial state: %d zones, %d areas, %d doors, %d outputs",
		len(status.Zones), len(status.Areas), len(status.Doors), len(status.Outputs))

	p.applyAndEmit(status)

	go p.loop()
	return nil
}

func (p *Panel) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
}

func (p *Panel) loop() {
	interval := time.Duration(p.config.Watchdog.RefreshIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(p.events)

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

func (p *Panel) poll() {
	status, err := p.client.Fetch()
	if err != nil {
		metrics.PollErrors.Inc()
		p.log.Error("Fetch failed, skipping cycle: %v", err)
		return
	}
	metrics.Polls.Inc()
	metrics.LastPoll.SetToCurrentTime()
	p.applyAndEmit(status)
}

func (p *Panel) applyAndEmit(status *spc.Status) {
	p.mu.Lock()
	prev := p.status
	p.status = status
	p.mu.Unlock()

	logChanges := p.config.Watchdog.LogChanges

	prevZones := map[string]spc.Zone{}
	prevAreas := map[string]spc.Area{}
	prevDoors := map[string]spc.Door{}
	prevOutputs := map[string]spc.Output{}
	prevInfo := map[string]spc.InfoSection{}
	if prev != nil {
		for _, z := range prev.Zones {
			prevZones[z.ID] = z
		}
		for _, a := range prev.Areas {
			prevAreas[a.ID] = a
		}
		for _, d := range prev.Doors {
			prevDoors[d.ID] = d
		}
		for _, o := range prev.Outputs {
			prevOutputs[o.ID] = o
		}
		for _, s := range prev.Controller {
			prevInfo[s.Slug] = s
		}
	}

	for _, z := range status.Zones {
		if old, ok := prevZones[z.ID]; ok && old == z {
			continue
		}
		if logChanges {
			p.log.SPC("Zone %s (%s): input=%s status=%s", z.Name, z.ID, z.Input, z.Status)
		}
		p.emit(ZoneEvent{Zone: z})
	}
	for _, a := range status.Areas {
		if old, ok := prevAreas[a.ID]; ok && old == a {
			continue
		}
		if logChanges {
			p.log.SPC("Area %s (%s): %s", a.Name, a.ID, a.Status)
		}
		p.emit(AreaEvent{Area: a})
	}
	for _, d := range status.Doors {
		if old, ok := prevDoors[d.ID]; ok && old == d {
			continue
		}
		if logChanges {
			p.log.SPC("Door %s (%s): lock=%s contact=%s", d.Name, d.ID, d.Lock, d.Contact)
		}
		p.emit(DoorEvent{Door: d})
	}
	for _, o := range status.Outputs {
		if old, ok := prevOutputs[o.ID]; ok && old == o {
			continue
		}
		if logChanges {
			p.log.SPC("Output %s (%s): on=%v (%s)", o.Name, o.ID, o.On, o.StateText)
		}
		p.emit(OutputEvent{Output: o})
	}
	for _, s := range status.Controller {
		if old, ok := prevInfo[s.Slug]; ok && sameSection(old, s) {
			continue
		}
		p.emit(InfoEvent{Section: s})
	}
}

func sameSection(a, b spc.InfoSection) bool {
	if a.Title != b.Title || len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i] != b.Fields[i] {
			return false
		}
	}
	return true
}

// emit drops events rather than blocking the poll loop when the consumer
// has stalled.
func (p *Panel) emit(event interface{}) {
	select {
	case p.events <- event:
	default:
		p.log.Warning("Event channel full, dropping event")
	}
}

func (p *Panel) SendAreaCommand(ref, command string) error {
	return p.countCommand(p.client.SendAreaCommand(ref, command))
}

func (p *Panel) SendZoneCommand(ref, command string) error {
	return p.countCommand(p.client.SendZoneCommand(ref, command))
}

func (p *Panel) SendDoorCommand(ref, command string) error {
	return p.countCommand(p.client.SendDoorCommand(ref, command))
}

func (p *Panel) SendOutputCommand(ref, command string) error {
	return p.countCommand(p.client.SendOutputCommand(ref, command))
}

func (p *Panel) countCommand(err error) error {
	metrics.Commands.Inc()
	if err != nil {
		metrics.CommandErrors.Inc()
	}
	return err
}
