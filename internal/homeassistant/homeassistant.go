package homeassistant

import (
	"encoding/json"
	"fmt"

	"spc2mqtt/internal/config"
	"spc2mqtt/internal/log"
	"spc2mqtt/internal/mqtt"
	"spc2mqtt/internal/panel"
	"spc2mqtt/internal/spc"
	"spc2mqtt/internal/util"
)

type HomeAssistant struct {
	config *config.HomeAssistantConfig
	mqtt   mqtt.MQTTClient
	panel  *panel.Panel
	log    *log.Logger
}

func New(cfg *config.HomeAssistantConfig, mqttClient mqtt.MQTTClient, p *panel.Panel, logger *log.Logger) *HomeAssistant {
	return &HomeAssistant{
		config: cfg,
		mqtt:   mqttClient,
		panel:  p,
		log:    logger,
	}
}

func (ha *HomeAssistant) Start() {
	ha.log.Info("Starting Home Assistant integration")
	ha.publishDiscoveryConfig()
}

func (ha *HomeAssistant) publishDiscoveryConfig() {
	status := ha.panel.Status()

	for _, area := range status.Areas {
		ha.publishAreaConfig(area)
	}
	for _, zone := range status.Zones {
		ha.publishZoneConfig(zone)
	}
	for _, door := range status.Doors {
		ha.publishDoorConfig(door)
	}
	for _, output := range status.Outputs {
		ha.publishOutputConfig(output)
	}
}

func (ha *HomeAssistant) publishAreaConfig(area spc.Area) {
	config := map[string]interface{}{
		"name":              area.Name,
		"unique_id":         fmt.Sprintf("%s_area_%s", ha.mqtt.GetPrefix(), area.ID),
		"state_topic":       ha.mqtt.Topics().Area(area),
		"command_topic":     ha.mqtt.Topics().AreaCommand(area),
		"payload_disarm":    "mhs",
		"payload_arm_away":  "mes totale",
		"payload_arm_home":  "partiel a",
		"payload_arm_night": "partiel b",
		"value_template":    "{{ value_json.status_text }}",
	}
	ha.publishConfig("alarm_control_panel", "area_"+area.ID, config)
}

func (ha *HomeAssistant) publishZoneConfig(zone spc.Zone) {
	config := map[string]interface{}{
		"name":           zone.Name,
		"unique_id":      fmt.Sprintf("%s_zone_%s", ha.mqtt.GetPrefix(), zone.ID),
		"state_topic":    ha.mqtt.Topics().Zone(zone),
		"device_class":   getDeviceClass(zone),
		"value_template": "{{ value_json.input_text }}",
		"payload_on":     spc.InputOpen.String(),
		"payload_off":    spc.InputClosed.String(),
	}
	ha.publishConfig("binary_sensor", "zone_"+zone.ID, config)
}

func (ha *HomeAssistant) publishDoorConfig(door spc.Door) {
	config := map[string]interface{}{
		"name":           door.Name,
		"unique_id":      fmt.Sprintf("%s_door_%s", ha.mqtt.GetPrefix(), door.ID),
		"state_topic":    ha.mqtt.Topics().Door(door),
		"command_topic":  ha.mqtt.Topics().DoorCommand(door),
		"payload_lock":   "lock",
		"payload_unlock": "unlock",
		"state_locked":   spc.DoorNormal.String(),
		"state_unlocked": spc.DoorUnlocked.String(),
		"value_template": "{{ value_json.lock_text }}",
	}
	ha.publishConfig("lock", "door_"+door.ID, config)
}

func (ha *HomeAssistant) publishOutputConfig(output spc.Output) {
	config := map[string]interface{}{
		"name":           output.Name,
		"unique_id":      fmt.Sprintf("%s_output_%s", ha.mqtt.GetPrefix(), output.ID),
		"state_topic":    ha.mqtt.Topics().Output(output),
		"command_topic":  ha.mqtt.Topics().OutputCommand(output),
		"payload_on":     "on",
		"payload_off":    "off",
		"state_on":       true,
		"state_off":      false,
		"value_template": "{{ value_json.on }}",
	}
	ha.publishConfig("switch", "output_"+output.ID, config)
}

func (ha *HomeAssistant) publishConfig(component, objectID string, config map[string]interface{}) {
	topic := fmt.Sprintf("%s/%s/%s/%s/config",
		ha.config.Prefix, component, util.Slugify(ha.mqtt.GetPrefix()), objectID)

	payload, err := json.Marshal(config)
	if err != nil {
		ha.log.Error("Failed to marshal Home Assistant config: %v", err)
		return
	}

	ha.mqtt.Publish(topic, string(payload), true)
}
