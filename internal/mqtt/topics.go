package mqtt

import (
	"fmt"

	"spc2mqtt/internal/spc"
	"spc2mqtt/internal/util"
)

type Topics struct {
	prefix string
}

func NewTopics(prefix string) *Topics {
	return &Topics{prefix: prefix}
}

func (t *Topics) Status() string {
	return fmt.Sprintf("%s/status", t.prefix)
}

func (t *Topics) Zone(zone spc.Zone) string {
	return fmt.Sprintf("%s/zone/%s", t.prefix, util.Slugify(zone.Name))
}

func (t *Topics) ZoneCommand(zone spc.Zone) string {
	return fmt.Sprintf("%s/zone/%s/command", t.prefix, util.Slugify(zone.Name))
}

func (t *Topics) Area(area spc.Area) string {
	return fmt.Sprintf("%s/area/%s", t.prefix, util.Slugify(area.Name))
}

func (t *Topics) AreaCommand(area spc.Area) string {
	return fmt.Sprintf("%s/area/%s/command", t.prefix, util.Slugify(area.Name))
}

func (t *Topics) Door(door spc.Door) string {
	return fmt.Sprintf("%s/door/%s", t.prefix, util.Slugify(door.Name))
}

func (t *Topics) DoorCommand(door spc.Door) string {
	return fmt.Sprintf("%s/door/%s/command", t.prefix, util.Slugify(door.Name))
}

func (t *Topics) Output(output spc.Output) string {
	return fmt.Sprintf("%s/output/%s", t.prefix, util.Slugify(output.Name))
}

func (t *Topics) OutputCommand(output spc.Output) string {
	return fmt.Sprintf("%s/output/%s/command", t.prefix, util.Slugify(output.Name))
}

func (t *Topics) Controller(section spc.InfoSection) string {
	return fmt.Sprintf("%s/controller/%s", t.prefix, section.Slug)
}

// CommandFilter matches every per-entity command topic in one
// subscription, so entities appearing after startup need no resubscribe.
func (t *Topics) CommandFilter() string {
	return fmt.Sprintf("%s/+/+/command", t.prefix)
}
