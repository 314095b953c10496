package homeassistant

import (
	"strings"

	"spc2mqtt/internal/spc"
)

// getDeviceClass guesses a Home Assistant device class from the zone
// name; the panel does not expose zone types on its status pages.
func getDeviceClass(zone spc.Zone) string {
	name := strings.ToLower(zone.Name)
	if strings.Contains(name, "pir") || strings.Contains(name, "radar") {
		return "motion"
	}
	if strings.Contains(name, "porte") || strings.Contains(name, "door") {
		return "door"
	}
	if strings.Contains(name, "fenetre") || strings.Contains(name, "fenêtre") || strings.Contains(name, "window") {
		return "window"
	}
	if strings.Contains(name, "fumee") || strings.Contains(name, "fumée") || strings.Contains(name, "smoke") || strings.Contains(name, "incendie") || strings.Contains(name, "fire") {
		return "smoke"
	}
	if strings.Contains(name, "gaz") || strings.Contains(name, "gas") {
		return "gas"
	}
	if strings.Contains(name, "eau") || strings.Contains(name, "water") {
		return "moisture"
	}

	return "opening"
}
