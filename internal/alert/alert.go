// internal/alert/alert.go
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"bloodbank/internal/bloodtype"
	"bloodbank/internal/config"
	"bloodbank/internal/inventory"
)

// StockAlert reports that a blood type fell below its minimum threshold.
type StockAlert struct {
	BloodType        bloodtype.BloodType  `json:"blood_type"`
	Level            inventory.StockLevel `json:"level"`
	AvailableUnits   int                  `json:"available_units"`
	MinimumThreshold int                  `json:"minimum_threshold"`
	RaisedAt         time.Time            `json:"raised_at"`
}

// NewStockAlert builds the alert for a summary, or returns false when the
// stock level needs no attention.
func NewStockAlert(s inventory.Summary, at time.Time) (StockAlert, bool) {
	if s.Level == inventory.StockGood {
		return StockAlert{}, false
	}
	return StockAlert{
		BloodType:        s.BloodType,
		Level:            s.Level,
		AvailableUnits:   s.AvailableUnits,
		MinimumThreshold: s.MinimumThreshold,
		RaisedAt:         at.UTC(),
	}, true
}

// Publisher delivers stock alerts.
type Publisher interface {
	PublishStockAlert(ctx context.Context, a StockAlert) error
	Close()
}

// Topic is the MQTT topic of a blood type's stock alerts. The Rh sign is
// spelled out because '+' is an MQTT wildcard.
func Topic(prefix string, bt bloodtype.BloodType) string {
	sign := "pos"
	if bt.Factor() == bloodtype.Negative {
		sign = "neg"
	}
	return fmt.Sprintf("%s/stock/%s%s", strings.TrimSuffix(prefix, "/"), strings.ToLower(string(bt.Group())), sign)
}

// MQTTPublisher publishes retained alerts so that late subscribers see the
// latest level of each type.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	logger *zap.Logger
}

func NewMQTTPublisher(cfg config.MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	logger.Info("connected to mqtt broker", zap.String("broker", cfg.Broker))

	return &MQTTPublisher{client: client, prefix: cfg.TopicPrefix, logger: logger}, nil
}

func (p *MQTTPublisher) PublishStockAlert(ctx context.Context, a StockAlert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal stock alert: %w", err)
	}

	topic := Topic(p.prefix, a.BloodType)
	token := p.client.Publish(topic, 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

// Nop discards alerts; used when no broker is configured.
type Nop struct{}

func (Nop) PublishStockAlert(context.Context, StockAlert) error { return nil }
func (Nop) Close()                                             {}

// New returns an MQTT publisher when a broker is configured and Nop otherwise.
func New(cfg config.MQTTConfig, logger *zap.Logger) (Publisher, error) {
	if cfg.Broker == "" {
		logger.Info("no mqtt broker configured; stock alerts are disabled")
		return Nop{}, nil
	}
	return NewMQTTPublisher(cfg, logger)
}
