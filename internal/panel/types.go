package panel

import "spc2mqtt/internal/spc"

// ZoneEvent reports a zone whose state changed since the last poll.
type ZoneEvent struct {
	Zone spc.Zone
}

// AreaEvent reports an area whose arm state changed.
type AreaEvent struct {
	Area spc.Area
}

// DoorEvent reports a door whose lock or contact state changed.
type DoorEvent struct {
	Door spc.Door
}

// OutputEvent reports an output that toggled.
type OutputEvent struct {
	Output spc.Output
}

// InfoEvent reports a controller diagnostics section whose values changed.
type InfoEvent struct {
	Section spc.InfoSection
}
