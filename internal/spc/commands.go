package spc

import (
	"fmt"
	"net/url"
	"strings"

	"spc2mqtt/internal/util"
)

// Command words arrive from MQTT or the CLI in whatever language and
// spelling the operator uses. They are folded (lowercased, unaccented)
// and looked up in per-kind synonym tables that map French, English, and
// abbreviated spellings onto the literal form value the panel expects.

const (
	pageAreaCtrl   = "l_area_ctrl"
	pageZoneCtrl   = "l_zone_ctrl"
	pageDoorCtrl   = "l_door_ctrl"
	pageOutputCtrl = "status_outputs"
)

var areaCommands = map[string]string{
	"mes":             "set",
	"mes totale":      "set",
	"arm":             "set",
	"armer":           "set",
	"away":            "set",
	"total":           "set",
	"fullset":         "set",
	"mes partielle a": "partset_a",
	"partielle a":     "partset_a",
	"partiel a":       "partset_a",
	"partset a":       "partset_a",
	"part a":          "partset_a",
	"partiel":         "partset_a",
	"mes partielle b": "partset_b",
	"partielle b":     "partset_b",
	"partiel b":       "partset_b",
	"partset b":       "partset_b",
	"part b":          "partset_b",
	"mhs":             "unset",
	"desarmer":        "unset",
	"desarm":          "unset",
	"disarm":          "unset",
	"unset":           "unset",
}

var zoneCommands = map[string]string{
	"isoler":     "isolate",
	"isolate":    "isolate",
	"isol":       "isolate",
	"desisoler":  "deisolate",
	"deisolate":  "deisolate",
	"desisol":    "deisolate",
	"retablir":   "deisolate",
	"restore":    "deisolate",
	"inhiber":    "inhibit",
	"inhibit":    "inhibit",
	"inh":        "inhibit",
	"bypass":     "inhibit",
	"desinhiber": "deinhibit",
	"deinhibit":  "deinhibit",
	"uninhibit":  "deinhibit",
	"unbypass":   "deinhibit",
}

var doorCommands = map[string]string{
	"verrouiller":   "lock",
	"lock":          "lock",
	"verr":          "lock",
	"deverrouiller": "unlock",
	"unlock":        "unlock",
	"ouvrir":        "unlock",
	"open":          "unlock",
	"normal":        "norm",
	"norm":          "norm",
}

var outputCommands = map[string]string{
	"on":      "on",
	"marche":  "on",
	"activer": "on",
	"1":       "on",
	"off":     "off",
	"arret":   "off",
	"stop":    "off",
	"0":       "off",
}

func normalizeCommand(word string, table map[string]string) (string, error) {
	folded := strings.TrimSpace(foldText(word))
	if mode, ok := table[folded]; ok {
		return mode, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, word)
}

// resolveRef matches a human-supplied reference (numeric id, slug, or
// display name) against known entities: exact id first, then normalized
// label.
func resolveRef(ref string, ids, names []string) (int, error) {
	ref = strings.TrimSpace(ref)
	for i, id := range ids {
		if id == ref {
			return i, nil
		}
	}
	slug := util.Slugify(ref)
	for i := range ids {
		if ids[i] == slug || util.Slugify(names[i]) == slug {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNotFound, ref)
}

// SendAreaCommand arms or disarms an area. The reference resolves against
// the most recent fetch.
func (c *Client) SendAreaCommand(ref, command string) error {
	mode, err := normalizeCommand(command, areaCommands)
	if err != nil {
		return err
	}
	areas := c.snapshot().Areas
	ids := make([]string, len(areas))
	names := make([]string, len(areas))
	for i, a := range areas {
		ids[i], names[i] = a.ID, a.Name
	}
	i, err := resolveRef(ref, ids, names)
	if err != nil {
		return err
	}
	c.log.Info("Sending area command: %s (%s) -> %s", areas[i].Name, areas[i].ID, mode)
	return c.postCommand(pageAreaCtrl, url.Values{
		"area": {areas[i].ID},
		"mode": {mode},
	})
}

// SendZoneCommand isolates, de-isolates, inhibits, or de-inhibits a zone.
func (c *Client) SendZoneCommand(ref, command string) error {
	mode, err := normalizeCommand(command, zoneCommands)
	if err != nil {
		return err
	}
	zones := c.snapshot().Zones
	ids := make([]string, len(zones))
	names := make([]string, len(zones))
	for i, z := range zones {
		ids[i], names[i] = z.ID, z.Name
	}
	i, err := resolveRef(ref, ids, names)
	if err != nil {
		return err
	}
	c.log.Info("Sending zone command: %s (%s) -> %s", zones[i].Name, zones[i].ID, mode)
	return c.postCommand(pageZoneCtrl, url.Values{
		"zone": {zones[i].ID},
		"mode": {mode},
	})
}

// SendDoorCommand locks, unlocks, or returns a door to normal mode.
func (c *Client) SendDoorCommand(ref, command string) error {
	mode, err := normalizeCommand(command, doorCommands)
	if err != nil {
		return err
	}
	doors := c.snapshot().Doors
	ids := make([]string, len(doors))
	names := make([]string, len(doors))
	for i, d := range doors {
		ids[i], names[i] = d.ID, d.Name
	}
	i, err := resolveRef(ref, ids, names)
	if err != nil {
		return err
	}
	c.log.Info("Sending door command: %s (%s) -> %s", doors[i].Name, doors[i].ID, mode)
	return c.postCommand(pageDoorCtrl, url.Values{
		"door": {doors[i].ID},
		"mode": {mode},
	})
}

// SendOutputCommand toggles an output using the form affordances scraped
// from the status page, never a guessed field name.
func (c *Client) SendOutputCommand(ref, command string) error {
	mode, err := normalizeCommand(command, outputCommands)
	if err != nil {
		return err
	}
	outputs := c.snapshot().Outputs
	ids := make([]string, len(outputs))
	names := make([]string, len(outputs))
	for i, o := range outputs {
		ids[i], names[i] = o.ID, o.Name
	}
	i, err := resolveRef(ref, ids, names)
	if err != nil {
		return err
	}
	field := outputs[i].OnField
	if mode == "off" {
		field = outputs[i].OffField
	}
	if field.Name == "" {
		return fmt.Errorf("output %q has no %s control on the status page", outputs[i].Name, mode)
	}
	c.log.Info("Sending output command: %s (%s) -> %s", outputs[i].Name, outputs[i].ID, mode)
	return c.postCommand(pageOutputCtrl, url.Values{
		field.Name: {field.Value},
	})
}

// postCommand POSTs a control form. If the response turns out to be a
// login page the session is refreshed and the POST retried exactly once;
// a second login page is a hard failure, reported, never looped on.
func (c *Client) postCommand(page string, form url.Values) error {
	token, err := c.session.GetOrLogin()
	if err != nil {
		return err
	}

	resp, err := c.http.Post(c.session.SecureURL(token, page), form, c.refererFor(token, page))
	if err != nil {
		return fmt.Errorf("command POST failed: %w", err)
	}
	if !IsLoginPage(resp.URL, resp.Body) {
		c.session.SaveRotated(token, ExtractToken(resp.Body))
		return nil
	}

	c.log.Debug("Command rejected with login page, re-authenticating once")
	token, err = c.session.Relogin(token)
	if err != nil {
		return err
	}
	resp, err = c.http.Post(c.session.SecureURL(token, page), form, c.refererFor(token, page))
	if err != nil {
		return fmt.Errorf("command POST failed after re-login: %w", err)
	}
	if IsLoginPage(resp.URL, resp.Body) {
		return ErrSessionExpired
	}
	c.session.SaveRotated(token, ExtractToken(resp.Body))
	return nil
}
