package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rumen-monitor/internal/config"
	"rumen-monitor/internal/model"
)

const telemetryQoS = 1

// Client wraps the paho MQTT connection for inbound telemetry and outbound
// alert publishing. Reconnects are automatic with bounded backoff; in-flight
// messages lost across a process death are not recovered (at-least-once on
// the broker side, no durable inbound queue on ours).
type Client struct {
	mqtt      mqtt.Client
	namespace string
	logger    *zap.Logger
}

func NewClient(cfg config.MQTTConfig, logger *zap.Logger) *Client {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetMaxReconnectInterval(cfg.ReconnectMax)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("broker connection lost", zap.Error(err))
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("reconnecting to broker")
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("connected to broker", zap.String("broker", cfg.BrokerURL))
	})

	return &Client{
		mqtt:      mqtt.NewClient(opts),
		namespace: cfg.Namespace,
		logger:    logger,
	}
}

// Connect establishes the initial broker session. Failure here is fatal to
// the process; everything after is handled by auto-reconnect.
func (c *Client) Connect() error {
	if token := c.mqtt.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return nil
}

func (c *Client) Disconnect() { c.mqtt.Disconnect(250) }

// Subscribe attaches handler to {namespace}/+/+/telemetry. Paho delivers
// messages to the handler in arrival order, which preserves per-station
// ordering without any work on our side.
func (c *Client) Subscribe(ctx context.Context, handler func(ctx context.Context, topic string, payload []byte)) error {
	filter := c.namespace + "/+/+/telemetry"
	token := c.mqtt.Subscribe(filter, telemetryQoS, func(_ mqtt.Client, msg mqtt.Message) {
		handler(ctx, msg.Topic(), msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", filter, token.Error())
	}
	c.logger.Info("subscribed", zap.String("filter", filter), zap.Int("qos", telemetryQoS))
	return nil
}

// ParseTelemetryTopic extracts assay and station from
// "{namespace}/{assayId}/{stationId}/telemetry".
func ParseTelemetryTopic(topic string) (assayID string, stationID int, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[3] != "telemetry" {
		return "", 0, false
	}
	station, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, false
	}
	return parts[1], station, true
}

// outboundAlert mirrors the alert payload the measurement units themselves
// publish, so downstream consumers see one shape.
type outboundAlert struct {
	SchemaVersion int    `json:"schema_version"`
	MsgID         string `json:"msg_id"`
	AssayID       string `json:"assay_id"`
	FlaskID       int    `json:"flask_id"`
	Timestamp     string `json:"timestamp"`
	AlertType     string `json:"alert_type"`
	Message       string `json:"message"`
	Severity      string `json:"severity"`
}

// PublishAlert republishes an alert on {namespace}/{assayId}/{stationId}/alert.
func (c *Client) PublishAlert(a model.Alert) error {
	payload, err := json.Marshal(outboundAlert{
		SchemaVersion: 1,
		MsgID:         uuid.NewString(),
		AssayID:       a.AssayID,
		FlaskID:       a.StationID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		AlertType:     a.Kind,
		Message:       a.Message,
		Severity:      a.Severity,
	})
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s/%d/alert", c.namespace, a.AssayID, a.StationID)
	token := c.mqtt.Publish(topic, telemetryQoS, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}
