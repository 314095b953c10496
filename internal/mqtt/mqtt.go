package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"spc2mqtt/internal/config"
	"spc2mqtt/internal/log"
	"spc2mqtt/internal/panel"
	"spc2mqtt/internal/spc"
)

const (
	offlinePayload = "offline"
	onlinePayload  = "online"
)

type MQTT struct {
	config *config.MQTTConfig
	panel  *panel.Panel
	log    *log.Logger
	client mqtt.Client
	topics *Topics
}

func NewMQTT(cfg *config.MQTTConfig, p *panel.Panel, logger *log.Logger) *MQTT {
	return &MQTT{
		config: cfg,
		panel:  p,
		log:    logger,
		topics: NewTopics(cfg.Prefix),
	}
}

func (m *MQTT) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", m.config.Host, m.config.Port))
	// Random suffix: two processes sharing a config must not evict each
	// other from the broker.
	opts.SetClientID(fmt.Sprintf("%s-%s", m.config.ClientID, uuid.NewString()[:8]))
	opts.SetUsername(m.config.Username)
	opts.SetPassword(m.config.Password)
	opts.SetCleanSession(m.config.Clean)
	opts.SetKeepAlive(time.Duration(m.config.Keepalive) * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(m.onConnect)
	opts.SetConnectionLostHandler(m.onDisconnect)

	opts.SetWill(m.topics.Status(), offlinePayload, byte(m.config.QOS), true)
	return opts
}

func (m *MQTT) Connect() error {
	m.client = mqtt.NewClient(m.clientOptions())

	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}

	m.log.Info("Connected to MQTT broker: %s:%d", m.config.Host, m.config.Port)
	return nil
}

// Run consumes panel events until the event channel closes.
func (m *MQTT) Run() {
	for event := range m.panel.Events() {
		switch e := event.(type) {
		case panel.ZoneEvent:
			m.PublishZoneStatus(e.Zone)
		case panel.AreaEvent:
			m.PublishAreaStatus(e.Area)
		case panel.DoorEvent:
			m.PublishDoorStatus(e.Door)
		case panel.OutputEvent:
			m.PublishOutputStatus(e.Output)
		case panel.InfoEvent:
			m.PublishControllerInfo(e.Section)
		}
	}
}

func (m *MQTT) onConnect(client mqtt.Client) {
	m.log.Info("MQTT connection established")
	m.Publish(m.topics.Status(), onlinePayload, true)
	m.subscribeCommands()
}

func (m *MQTT) onDisconnect(client mqtt.Client, err error) {
	m.log.Error("MQTT connection lost: %v", err)
}

func (m *MQTT) subscribeCommands() {
	filter := m.topics.CommandFilter()
	token := m.client.Subscribe(filter, byte(m.config.QOS), m.handleMessage)
	if token.Wait() && token.Error() != nil {
		m.log.Error("Failed to subscribe to %s: %v", filter, token.Error())
	} else {
		m.log.Debug("Subscribed to command topics: %s", filter)
	}
}

// handleMessage routes <prefix>/<kind>/<ref>/command payloads to the
// dispatcher. Command failures are logged, never fatal.
func (m *MQTT) handleMessage(client mqtt.Client, msg mqtt.Message) {
	topic := msg.Topic()
	command := string(msg.Payload())
	m.log.Debug("Received message on topic %s: %s", topic, command)

	rest := strings.TrimPrefix(topic, m.config.Prefix+"/")
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != "command" {
		m.log.Warning("Received message on unknown topic: %s", topic)
		return
	}
	kind, ref := parts[0], parts[1]

	var err error
	switch kind {
	case "zone":
		err = m.panel.SendZoneCommand(ref, command)
	case "area":
		err = m.panel.SendAreaCommand(ref, command)
	case "door":
		err = m.panel.SendDoorCommand(ref, command)
	case "output":
		err = m.panel.SendOutputCommand(ref, command)
	default:
		m.log.Warning("Received command for unknown entity kind: %s", kind)
		return
	}
	if err != nil {
		m.log.Error("Command %q on %s %q failed: %v", command, kind, ref, err)
	}
}

func (m *MQTT) PublishZoneStatus(zone spc.Zone) {
	status := map[string]interface{}{
		"id":          zone.ID,
		"name":        zone.Name,
		"sector":      zone.Sector,
		"input":       int(zone.Input),
		"input_text":  zone.Input.String(),
		"status":      int(zone.Status),
		"status_text": zone.Status.String(),
	}
	m.Publish(m.topics.Zone(zone), status, m.config.Retain)
}

func (m *MQTT) PublishAreaStatus(area spc.Area) {
	status := map[string]interface{}{
		"id":          area.ID,
		"name":        area.Name,
		"status":      int(area.Status),
		"status_text": area.Status.String(),
	}
	m.Publish(m.topics.Area(area), status, m.config.Retain)
}

func (m *MQTT) PublishDoorStatus(door spc.Door) {
	status := map[string]interface{}{
		"id":           door.ID,
		"name":         door.Name,
		"zone":         door.Zone,
		"sector":       door.Sector,
		"lock":         int(door.Lock),
		"lock_text":    door.Lock.String(),
		"contact":      int(door.Contact),
		"contact_text": door.Contact.String(),
	}
	m.Publish(m.topics.Door(door), status, m.config.Retain)
}

func (m *MQTT) PublishOutputStatus(output spc.Output) {
	status := map[string]interface{}{
		"id":         output.ID,
		"name":       output.Name,
		"on":         output.On,
		"state_text": output.StateText,
	}
	m.Publish(m.topics.Output(output), status, m.config.Retain)
}

func (m *MQTT) PublishControllerInfo(section spc.InfoSection) {
	fields := map[string]interface{}{}
	for _, f := range section.Fields {
		fields[f.Key] = f.Value
	}
	status := map[string]interface{}{
		"title":  section.Title,
		"fields": fields,
	}
	m.Publish(m.topics.Controller(section), status, m.config.Retain)
}

func (m *MQTT) GetPrefix() string {
	return m.config.Prefix
}

func (m *MQTT) Topics() *Topics {
	return m.topics
}

func (m *MQTT) Publish(topic string, message interface{}, retain bool) {
	var payload []byte
	switch v := message.(type) {
	case string:
		payload = []byte(v)
	default:
		var err error
		payload, err = json.Marshal(message)
		if err != nil {
			m.log.Error("Failed to marshal message for topic %s: %v", topic, err)
			return
		}
	}

	token := m.client.Publish(topic, byte(m.config.QOS), retain, payload)
	if token.Wait() && token.Error() != nil {
		m.log.Error("Failed to publish message to topic %s: %v", topic, token.Error())
	} else {
		m.log.Trace("Published message to topic: %s", topic)
	}
}

func (m *MQTT) Close() {
	if m.client != nil && m.client.IsConnected() {
		m.Publish(m.topics.Status(), offlinePayload, true)
		m.client.Disconnect(250)
	}
}
