package spc

// InputState is the physical contact state of a zone input.
type InputState int

const (
	InputUnknown InputState = iota
	InputClosed
	InputOpen
	InputIsolated
	InputInhibited
)

func (s InputState) String() string {
	switch s {
	case InputClosed:
		return "Closed"
	case InputOpen:
		return "Open"
	case InputIsolated:
		return "Isolated"
	case InputInhibited:
		return "Inhibited"
	default:
		return "Unknown"
	}
}

// ZoneState is the alarm processing state of a zone.
type ZoneState int

const (
	ZoneUnknown ZoneState = iota
	ZoneNormal
	ZoneActive
	ZoneIsolated
	ZoneInhibited
	ZoneTrouble
)

func (s ZoneState) String() string {
	switch s {
	case ZoneNormal:
		return "Normal"
	case ZoneActive:
		return "Active"
	case ZoneIsolated:
		return "Isolated"
	case ZoneInhibited:
		return "Inhibited"
	case ZoneTrouble:
		return "Trouble"
	default:
		return "Unknown"
	}
}

// AreaState is the arm state of an area (secteur).
type AreaState int

const (
	AreaUnknown AreaState = iota
	AreaDisarmed
	AreaArmedFull
	AreaArmedPartA
	AreaArmedPartB
	AreaAlarm
)

func (s AreaState) String() string {
	switch s {
	case AreaDisarmed:
		return "Disarmed"
	case AreaArmedFull:
		return "Armed"
	case AreaArmedPartA:
		return "Part Armed A"
	case AreaArmedPartB:
		return "Part Armed B"
	case AreaAlarm:
		return "Alarm"
	default:
		return "Unknown"
	}
}

// DoorState is the lock mode of an access door.
type DoorState int

const (
	DoorUnknown DoorState = iota
	DoorNormal
	DoorUnlocked
	DoorAlarm
)

func (s DoorState) String() string {
	switch s {
	case DoorNormal:
		return "Normal"
	case DoorUnlocked:
		return "Unlocked"
	case DoorAlarm:
		return "Alarm"
	default:
		return "Unknown"
	}
}

// ContactState is the release contact of a door.
type ContactState int

const (
	ContactUnknown ContactState = iota
	ContactClosed
	ContactOpen
)

func (s ContactState) String() string {
	switch s {
	case ContactClosed:
		return "Closed"
	case ContactOpen:
		return "Open"
	default:
		return "Unknown"
	}
}

type Zone struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Sector     string     `json:"sector"`
	Input      InputState `json:"input"`
	InputText  string     `json:"input_text"`
	Status     ZoneState  `json:"status"`
	StatusText string     `json:"status_text"`
}

type Area struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Status     AreaState `json:"status"`
	StatusText string    `json:"status_text"`
}

type Door struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Zone        string       `json:"zone"`
	Sector      string       `json:"sector"`
	Lock        DoorState    `json:"lock"`
	LockText    string       `json:"lock_text"`
	Contact     ContactState `json:"contact"`
	ContactText string       `json:"contact_text"`
}

// FormField is a literal name/value pair the panel expects on a POST.
type FormField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Output struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	On        bool      `json:"on"`
	StateText string    `json:"state_text"`
	OnField   FormField `json:"on_field"`
	OffField  FormField `json:"off_field"`
}

// InfoField preserves the panel's ordering of diagnostic values.
type InfoField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// InfoSection groups controller diagnostics under a panel-defined heading.
type InfoSection struct {
	Slug   string      `json:"slug"`
	Title  string      `json:"title"`
	Fields []InfoField `json:"fields"`
}

// Status is one complete fetch of the panel.
type Status struct {
	Zones      []Zone        `json:"zones"`
	Areas      []Area        `json:"areas"`
	Doors      []Door        `json:"doors"`
	Outputs    []Output      `json:"outputs"`
	Controller []InfoSection `json:"controller"`
}
