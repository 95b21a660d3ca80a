package alert

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bloodbank/internal/bloodtype"
	"bloodbank/internal/config"
	"bloodbank/internal/inventory"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "bloodbank/stock/apos", Topic("bloodbank", bloodtype.APos))
	assert.Equal(t, "bloodbank/stock/abneg", Topic("bloodbank/", bloodtype.ABNeg))
	for _, bt := range bloodtype.All() {
		assert.NotContains(t, Topic("x", bt), "+")
	}
}

func TestNewStockAlert(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	_, ok := NewStockAlert(inventory.Summary{BloodType: bloodtype.OPos, Level: inventory.StockGood}, at)
	assert.False(t, ok)

	a, ok := NewStockAlert(inventory.Summary{
		BloodType:        bloodtype.ONeg,
		Level:            inventory.StockCritical,
		AvailableUnits:   2,
		MinimumThreshold: 10,
	}, at)
	require.True(t, ok)
	assert.Equal(t, inventory.StockCritical, a.Level)

	payload, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"blood_type":"O-","level":"Critical","available_units":2,"minimum_threshold":10,"raised_at":"2025-01-02T03:04:05Z"}`, string(payload))
}

func TestNew_WithoutBrokerIsNop(t *testing.T) {
	p, err := New(config.MQTTConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.PublishStockAlert(context.Background(), StockAlert{}))
}

func TestMQTTPublisher(t *testing.T) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		t.Skip("MQTT_BROKER not set")
	}
	prefix := "test-" + uuid.NewString()[:8]

	received := make(chan []byte, 1)
	sub := mqtt.NewClient(mqtt.NewClientOptions().AddBroker(broker).SetClientID("sub-" + prefix))
	token := sub.Connect()
	require.True(t, token.WaitTimeout(5*time.Second))
	require.NoError(t, token.Error())
	defer sub.Disconnect(100)
	token = sub.Subscribe(prefix+"/stock/#", 1, func(_ mqtt.Client, msg mqtt.Message) {
		received <- msg.Payload()
	})
	require.True(t, token.WaitTimeout(5*time.Second))

	p, err := NewMQTTPublisher(config.MQTTConfig{Broker: broker, ClientID: "pub-" + prefix, TopicPrefix: prefix}, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.PublishStockAlert(ctx, StockAlert{BloodType: bloodtype.BNeg, Level: inventory.StockLow}))

	select {
	case payload := <-received:
		assert.Contains(t, string(payload), `"B-"`)
	case <-time.After(5 * time.Second):
		t.Fatal("alert not received")
	}
}
