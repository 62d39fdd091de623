package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/fsr-serial/pkg/config"
	"github.com/ericogr/fsr-serial/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	retained bool
	payload  interface{}
}

// fakeClient embeds mqtt.Client; only Publish and Disconnect are used.
type fakeClient struct {
	mqtt.Client
	published    []message
	disconnected bool
	err          error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, message{topic: topic, retained: retained, payload: payload})
	return &fakeToken{err: c.err}
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestPublishDecimalPayload(t *testing.T) {
	c := &fakeClient{}
	m := newMQTTOutput(c, config.MQTTConfig{}, 0)

	require.NoError(t, m.Publish(sensor.Reading{Raw: 512}))
	require.NoError(t, m.Publish(sensor.Reading{Raw: -5}))

	require.Len(t, c.published, 2)
	assert.Equal(t, "fsr/channel/0", c.published[0].topic)
	assert.Equal(t, "512", c.published[0].payload)
	assert.Equal(t, "-5", c.published[1].payload)
	assert.False(t, c.published[0].retained)

	require.NoError(t, m.Close())
	assert.True(t, c.disconnected)
}

func TestPublishError(t *testing.T) {
	c := &fakeClient{err: errors.New("broker gone")}
	m := newMQTTOutput(c, config.MQTTConfig{StateTopic: "plant/fsr"}, 1)
	assert.Error(t, m.Publish(sensor.Reading{Raw: 1}))
	assert.Equal(t, "plant/fsr", c.published[0].topic)
}

func TestDiscoveryPayload(t *testing.T) {
	c := &fakeClient{}
	cfg := config.MQTTConfig{
		ClientID:       "bench",
		StateTopic:     "fsr/%d/state",
		DiscoveryTopic: "homeassistant/sensor/fsr_%d/config",
	}
	newMQTTOutput(c, cfg, 2)

	require.Len(t, c.published, 1)
	msg := c.published[0]
	assert.Equal(t, "homeassistant/sensor/fsr_2/config", msg.topic)
	assert.True(t, msg.retained)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.payload.([]byte), &payload))
	assert.Equal(t, "FSR bench ch2", payload[keyName])
	assert.Equal(t, "fsr/2/state", payload[keyStateTopic])
	assert.Equal(t, "bench_2", payload[keyUniqueID])
}

func TestFormatStateTopic(t *testing.T) {
	assert.Equal(t, "fsr/channel/3", formatStateTopic("", 3))
	assert.Equal(t, "a/3", formatStateTopic("a/%d", 3))
	assert.Equal(t, "fixed", formatStateTopic("fixed", 3))
}
