//go:build tinygo

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"time"

	"openenterprise/paxcounter/telemetry"

	mqtt "github.com/soypat/natiu-mqtt"
)

const (
	mqttTimeout = 10 * time.Second
	mqttBufSize = 512
)

var errMQTTConnect = errors.New("mqtt connect timeout")

// Pre-allocated buffers for memory efficiency
var (
	mqttUserBuf [mqttBufSize]byte
	mqttPayload [mqttBufSize]byte
)

// MQTT publish flags (QoS0, not retained, not dup)
var pubFlags, _ = mqtt.NewPublishFlags(mqtt.QoS0, false, false)

// mqttMirror publishes a JSON copy of every report to the broker under
// paxcounter/<device>/report. Like the HTTP POST it is fire-and-forget.
type mqttMirror struct {
	link   *wifiLink
	broker netip.AddrPort
	device string
	logger *slog.Logger
}

// Publish mirrors one report. The whole exchange, dial included, is bounded
// by mqttTimeout.
func (m *mqttMirror) Publish(ctx context.Context, r telemetry.Report) error {
	ctx, cancel := context.WithTimeout(ctx, mqttTimeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	stack, err := m.link.lneto()
	if err != nil {
		return err
	}
	conn, err := m.link.dialTCP(ctx, m.broker)
	if err != nil {
		m.logger.Debug("mqtt:dial-failed", slog.String("err", err.Error()))
		return err
	}
	defer conn.Close()

	cfg := mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: mqttUserBuf[:]},
		OnPub: func(mqtt.Header, mqtt.VariablesPublish, io.Reader) error {
			return nil
		},
	}
	client := mqtt.NewClient(cfg)

	// Append random suffix to client ID to avoid conflicts with parallel units
	clientID := make([]byte, 0, 48)
	clientID = append(clientID, m.device...)
	clientID = append(clientID, '-')
	clientID = appendHex(clientID, uint16(stack.Prand32()))
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT(clientID)

	conn.SetDeadline(deadline)
	if err := client.StartConnect(conn, &varconn); err != nil {
		return err
	}
	for !client.IsConnected() && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
		if err := client.HandleNext(); err != nil {
			m.logger.Debug("mqtt:handle-next", slog.String("err", err.Error()))
		}
	}
	if !client.IsConnected() {
		return errMQTTConnect
	}

	topic := make([]byte, 0, 64)
	topic = append(topic, "paxcounter/"...)
	topic = append(topic, m.device...)
	topic = append(topic, "/report"...)
	payload := telemetry.AppendJSON(mqttPayload[:0], r)

	err = client.PublishPayload(pubFlags, mqtt.VariablesPublish{
		TopicName:        topic,
		PacketIdentifier: uint16(stack.Prand32()),
	}, payload)
	client.Disconnect(errors.New("report sent"))
	if err != nil {
		return err
	}
	m.logger.Debug("mqtt:published", slog.String("topic", string(topic)), slog.Int("bytes", len(payload)))
	return nil
}

// appendHex appends a uint16 as 4 hex characters to the byte slice
func appendHex(b []byte, v uint16) []byte {
	const hexDigits = "0123456789abcdef"
	return append(b,
		hexDigits[(v>>12)&0xf],
		hexDigits[(v>>8)&0xf],
		hexDigits[(v>>4)&0xf],
		hexDigits[v&0xf],
	)
}
