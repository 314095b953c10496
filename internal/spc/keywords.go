package spc

import (
	"strings"

	"spc2mqtt/internal/util"
)

// The panel renders state labels in French or English depending on the
// login language, with accents that vary across firmware builds. All
// matching is therefore done on folded text: lowercased, diacritics
// stripped. Keyword groups are ordered most-specific first so that
// "partiel b" is tested before the subsumed "partiel"; the first matching
// group wins and no match yields -1, which callers map to the Unknown
// state rather than any default.

type keywordGroup struct {
	code int
	keys []string
}

func foldText(s string) string {
	return strings.ToLower(util.StripDiacritics(s))
}

func classify(text string, groups []keywordGroup) int {
	s := foldText(text)
	if s == "" {
		return -1
	}
	for _, g := range groups {
		for _, k := range g.keys {
			if strings.Contains(s, k) {
				return g.code
			}
		}
	}
	return -1
}

var inputGroups = []keywordGroup{
	{int(InputInhibited), []string{"inhib", "exclu", "bypass", "omit"}},
	{int(InputIsolated), []string{"isol"}},
	{int(InputClosed), []string{"ferm", "close"}},
	{int(InputOpen), []string{"ouvert", "open"}},
}

var zoneGroups = []keywordGroup{
	{int(ZoneInhibited), []string{"inhib", "exclu", "bypass", "omit"}},
	{int(ZoneIsolated), []string{"isol"}},
	{int(ZoneTrouble), []string{"defaut", "trouble", "fault", "anomalie"}},
	{int(ZoneActive), []string{"activ", "alarme", "alarm", "declench"}},
	{int(ZoneNormal), []string{"normal", "repos", "secure"}},
}

// Area groups: the partial variants subsume each other and "disarmed"
// contains "armed", so ordering carries the whole semantics here.
var areaGroups = []keywordGroup{
	{int(AreaArmedPartB), []string{"mes partielle b", "partielle b", "partiel b", "partset b", "part b"}},
	{int(AreaArmedPartA), []string{"mes partielle a", "partielle a", "partiel a", "partset a", "part a"}},
	{int(AreaArmedPartA), []string{"mes partiel", "partiel", "partset", "part arm"}},
	{int(AreaAlarm), []string{"alarme", "alarm", "intrusion"}},
	{int(AreaDisarmed), []string{"mhs", "desarm", "disarm", "unset"}},
	{int(AreaArmedFull), []string{"mes totale", "mes total", "fullset", "full set", "armed", "arm"}},
}

var doorGroups = []keywordGroup{
	{int(DoorAlarm), []string{"alarme", "alarm", "forc"}},
	{int(DoorUnlocked), []string{"deverrouill", "unlock", "maintenu"}},
	{int(DoorNormal), []string{"verrouill", "lock", "normal"}},
}

var contactGroups = []keywordGroup{
	{int(ContactClosed), []string{"ferm", "close"}},
	{int(ContactOpen), []string{"ouvert", "open"}},
}

// Output off before on: "inactif" contains "actif".
var outputGroups = []keywordGroup{
	{0, []string{"inactif", "arret", "off", "stop"}},
	{1, []string{"marche", "enclench", "actif", "on"}},
}

func mapInputState(text string) InputState {
	if c := classify(text, inputGroups); c >= 0 {
		return InputState(c)
	}
	return InputUnknown
}

func mapZoneState(text string) ZoneState {
	if c := classify(text, zoneGroups); c >= 0 {
		return ZoneState(c)
	}
	return ZoneUnknown
}

func mapAreaState(text string) AreaState {
	if c := classify(text, areaGroups); c >= 0 {
		return AreaState(c)
	}
	return AreaUnknown
}

func mapDoorState(text string) DoorState {
	if c := classify(text, doorGroups); c >= 0 {
		return DoorState(c)
	}
	return DoorUnknown
}

func mapContactState(text string) ContactState {
	if c := classify(text, contactGroups); c >= 0 {
		return ContactState(c)
	}
	return ContactUnknown
}

// mapOutputState returns 1 for on, 0 for off, -1 when unknown.
func mapOutputState(text string) int {
	return classify(text, outputGroups)
}

// guessLabel maps an icon-class-like token (img class, src fragment) to a
// canonical state label, so that a cell rendered as <img class="led_ferm">
// classifies the same as the literal text "Fermée". Ordered: "deverr"
// before "verr", "unlock" before "lock".
var labelGuesses = []struct {
	substr string
	label  string
}{
	{"inhib", "inhibee"},
	{"isol", "isolee"},
	{"deverr", "deverrouille"},
	{"unlock", "deverrouille"},
	{"verr", "verrouille"},
	{"lock", "verrouille"},
	{"alarm", "alarme"},
	{"ferm", "fermee"},
	{"close", "fermee"},
	{"ouvr", "ouverte"},
	{"open", "ouverte"},
	{"norm", "normal"},
	{"marche", "marche"},
	{"arret", "arret"},
}

func guessLabel(token string) string {
	s := foldText(token)
	for _, g := range labelGuesses {
		if strings.Contains(s, g.substr) {
			return g.label
		}
	}
	return ""
}

// CSS color fallback, used only when a cell yields no text at all. The
// panel's stylesheets are stable on this point: green for the quiescent
// state, red for the active one, orange for isolation/trouble, blue for
// inhibit.
var colorHex = map[string]string{
	"#00ff00": "green",
	"#008000": "green",
	"#00cc00": "green",
	"#ff0000": "red",
	"#cc0000": "red",
	"#ffa500": "orange",
	"#ff8000": "orange",
	"#0000ff": "blue",
	"#0080ff": "blue",
}

func colorName(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if n, ok := colorHex[c]; ok {
		return n
	}
	switch c {
	case "green", "red", "orange", "blue":
		return c
	}
	return ""
}

var (
	inputColors = map[string]InputState{
		"green":  InputClosed,
		"red":    InputOpen,
		"orange": InputIsolated,
		"blue":   InputInhibited,
	}
	zoneColors = map[string]ZoneState{
		"green":  ZoneNormal,
		"red":    ZoneActive,
		"orange": ZoneTrouble,
		"blue":   ZoneInhibited,
	}
	areaColors = map[string]AreaState{
		"green":  AreaDisarmed,
		"red":    AreaAlarm,
		"orange": AreaArmedPartA,
		"blue":   AreaArmedFull,
	}
	doorColors = map[string]DoorState{
		"green":  DoorNormal,
		"red":    DoorAlarm,
		"orange": DoorUnlocked,
	}
	contactColors = map[string]ContactState{
		"green": ContactClosed,
		"red":   ContactOpen,
	}
)
