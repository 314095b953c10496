package panel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"spc2mqtt/internal/config"
	"spc2mqtt/internal/log"
	"spc2mqtt/internal/spc"
)

func newTestPanel(t *testing.T) *Panel {
	t.Helper()
	cfg := &config.Config{
		SPC: config.SPCConfig{
			Host:                "http://127.0.0.1:1",
			User:                "admin",
			Pin:                 "1234",
			Language:            253,
			SessionCacheDir:     t.TempDir(),
			MinLoginIntervalSec: 60,
			HTTPTimeoutSec:      1,
		},
		Watchdog: config.WatchdogConfig{RefreshIntervalSec: 2},
	}
	p, err := NewPanel(cfg, log.NewLogger("error"))
	require.NoError(t, err)
	return p
}

func drain(p *Panel) []interface{} {
	var events []interface{}
	for {
		select {
		case e := <-p.events:
			events = append(events, e)
		default:
			return events
		}
	}
}

func testStatus() *spc.Status {
	return &spc.Status{
		Zones: []spc.Zone{
			{ID: "3", Name: "3 Cuisine", Input: spc.InputClosed, Status: spc.ZoneNormal},
			{ID: "5", Name: "5 Salon", Input: spc.InputClosed, Status: spc.ZoneNormal},
		},
		Areas: []spc.Area{
			{ID: "1", Name: "Maison", Status: spc.AreaDisarmed, StatusText: "MHS"},
		},
		Doors: []spc.Door{
			{ID: "1", Name: "1 Entrée", Lock: spc.DoorNormal, Contact: spc.ContactClosed},
		},
		Outputs: []spc.Output{
			{ID: "3", Name: "3 Sirène", On: false},
		},
		Controller: []spc.InfoSection{
			{Slug: "alimentation", Title: "Alimentation", Fields: []spc.InfoField{
				{Key: "Tension batterie", Value: "13.6 V"},
			}},
		},
	}
}

func TestApplyAndEmitInitialStateEmitsEverything(t *testing.T) {
	p := newTestPanel(t)
	p.applyAndEmit(testStatus())

	events := drain(p)
	require.Len(t, events, 6)
}

func TestApplyAndEmitUnchangedStateEmitsNothing(t *testing.T) {
	p := newTestPanel(t)
	p.SetCachedStatus(testStatus())

	p.applyAndEmit(testStatus())
	require.Empty(t, drain(p))
}

func TestApplyAndEmitSingleChange(t *testing.T) {
	p := newTestPanel(t)
	p.SetCachedStatus(testStatus())

	next := testStatus()
	next.Zones[0].Input = spc.InputOpen
	next.Zones[0].InputText = "Ouverte"
	p.applyAndEmit(next)

	events := drain(p)
	require.Len(t, events, 1)
	ze, ok := events[0].(ZoneEvent)
	require.True(t, ok)
	require.Equal(t, "3", ze.Zone.ID)
	require.Equal(t, spc.InputOpen, ze.Zone.Input)
}

func TestApplyAndEmitNewEntity(t *testing.T) {
	p := newTestPanel(t)
	p.SetCachedStatus(testStatus())

	next := testStatus()
	next.Doors = append(next.Doors, spc.Door{ID: "2", Name: "2 Local technique"})
	p.applyAndEmit(next)

	events := drain(p)
	require.Len(t, events, 1)
	de, ok := events[0].(DoorEvent)
	require.True(t, ok)
	require.Equal(t, "2", de.Door.ID)
}

func TestApplyAndEmitControllerFieldChange(t *testing.T) {
	p := newTestPanel(t)
	p.SetCachedStatus(testStatus())

	next := testStatus()
	next.Controller[0].Fields[0].Value = "12.1 V"
	p.applyAndEmit(next)

	events := drain(p)
	require.Len(t, events, 1)
	ie, ok := events[0].(InfoEvent)
	require.True(t, ok)
	require.Equal(t, "alimentation", ie.Section.Slug)
}

func TestEmitNeverBlocksWhenChannelFull(t *testing.T) {
	p := newTestPanel(t)
	for i := 0; i < 200; i++ {
		p.emit(ZoneEvent{})
	}
	require.Len(t, drain(p), cap(p.events))
}

func TestStatusBeforeFirstFetch(t *testing.T) {
	p := newTestPanel(t)
	require.NotNil(t, p.Status())
	require.Empty(t, p.Status().Zones)
}
