package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/fsr-serial/pkg/config"
	"github.com/ericogr/fsr-serial/pkg/output"
	"github.com/ericogr/fsr-serial/pkg/sensor"
)

const (
	// defaults
	DefaultServer      = "tcp://localhost:1883"
	DefaultClientID    = "fsr-serial"
	perChannelTopicFmt = "fsr/channel/%d"
	// discovery payload keys/values
	keyName               = "name"
	keyStateTopic         = "state_topic"
	keyStateClass         = "state_class"
	keyUniqueID           = "unique_id"
	keyIcon               = "icon"
	stateClassMeasurement = "measurement"
	iconForce             = "mdi:gesture-tap"
)

// MQTTOutput mirrors each reading as its decimal text on a state topic.
type MQTTOutput struct {
	client     mqtt.Client
	stateTopic string
}

func NewMQTT(cfg config.MQTTConfig, channel int) (output.Output, error) {
	server := cfg.Server
	if server == "" {
		server = DefaultServer
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}
	opts := mqtt.NewClientOptions().AddBroker(server).SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	cfg.ClientID = clientID
	return newMQTTOutput(client, cfg, channel), nil
}

// newMQTTOutput wraps a connected client and publishes the Home Assistant
// discovery payload when a discovery topic is configured.
func newMQTTOutput(client mqtt.Client, cfg config.MQTTConfig, channel int) *MQTTOutput {
	m := &MQTTOutput{client: client, stateTopic: formatStateTopic(cfg.StateTopic, channel)}
	if cfg.DiscoveryTopic != "" {
		dTopic := cfg.DiscoveryTopic
		if strings.Contains(dTopic, "%d") {
			dTopic = fmt.Sprintf(dTopic, channel)
		}
		payload := baseDiscoveryPayload(discoveryName(cfg, channel), m.stateTopic, discoveryUniqueID(cfg, channel))
		if err := publishJSON(client, dTopic, true, payload); err != nil {
			log.Printf("mqtt discovery publish error: %v", err)
		}
	}
	return m
}

func (m *MQTTOutput) Publish(r sensor.Reading) error {
	token := m.client.Publish(m.stateTopic, 0, false, strconv.Itoa(r.Raw))
	token.Wait()
	return token.Error()
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}

// helper: format a state topic for a channel using an optional formatter
func formatStateTopic(base string, ch int) string {
	if base != "" {
		if strings.Contains(base, "%d") {
			return fmt.Sprintf(base, ch)
		}
		return base
	}
	return fmt.Sprintf(perChannelTopicFmt, ch)
}

func discoveryName(cfg config.MQTTConfig, ch int) string {
	name := cfg.DiscoveryName
	if name == "" {
		name = fmt.Sprintf("FSR %s", cfg.ClientID)
	}
	return fmt.Sprintf("%s ch%d", name, ch)
}

func discoveryUniqueID(cfg config.MQTTConfig, ch int) string {
	uid := cfg.DiscoveryUniqueID
	if uid == "" {
		uid = cfg.ClientID
	}
	if uid != "" {
		uid = fmt.Sprintf("%s_%d", uid, ch)
	}
	return uid
}

func baseDiscoveryPayload(name, stateTopic, uniqueID string) map[string]interface{} {
	payload := map[string]interface{}{
		keyName:       name,
		keyStateTopic: stateTopic,
		keyStateClass: stateClassMeasurement,
		keyIcon:       iconForce,
	}
	if uniqueID != "" {
		payload[keyUniqueID] = uniqueID
	}
	return payload
}

func publishJSON(client mqtt.Client, topic string, retained bool, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := client.Publish(topic, 0, retained, b)
	token.Wait()
	return token.Error()
}
