// Package mqtt notifies shop-floor boards of committed vessel assignments
// over MQTT.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/pailas/core/events"
	coremon "github.com/kilianp07/pailas/core/monitoring"
	"github.com/kilianp07/pailas/infra/logger"
	"github.com/kilianp07/pailas/internal/eventbus"
)

// DefaultTopicPrefix is used when the config leaves the prefix empty.
const DefaultTopicPrefix = "pailas/vessel"

// Publisher sends planning events to per-vessel topics.
type Publisher struct {
	cli         pahoClient
	prefix      string
	qos         byte
	retain      bool
	statusTopic string
	maxRetries  int
	backoff     time.Duration
	log         logger.Logger
}

// NewPublisher connects to the broker.
func NewPublisher(cfg Config) (*Publisher, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_publisher")
	p := &Publisher{
		prefix:      strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:         cfg.QoS,
		retain:      cfg.Retain,
		statusTopic: cfg.StatusTopic,
		maxRetries:  cfg.MaxRetries,
		backoff:     time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:         log,
	}
	if p.prefix == "" {
		p.prefix = DefaultTopicPrefix
	}
	if p.maxRetries <= 0 {
		p.maxRetries = 3
	}
	if p.backoff <= 0 {
		p.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if p.statusTopic == "" {
			return
		}
		if token := c.Publish(p.statusTopic, p.qos, true, statusOnline); token.Wait() && token.Error() != nil {
			log.Errorf("status publish error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	p.cli = c
	return p, nil
}

// Topic returns the topic for an event kind on a vessel.
func (p *Publisher) Topic(vesselID, kind string) string {
	return fmt.Sprintf("%s/%s/%s", p.prefix, vesselID, kind)
}

// route picks the topic of an event. Events that do not concern a single
// vessel are not published.
func (p *Publisher) route(ev events.Event) (string, string, bool) {
	switch e := ev.(type) {
	case events.AssignmentEvent:
		return p.Topic(e.VesselID, "assignment"), e.VesselID, true
	case events.UnassignEvent:
		if e.PreviousVessel == nil || *e.PreviousVessel == "" {
			return "", "", false
		}
		return p.Topic(*e.PreviousVessel, "release"), *e.PreviousVessel, true
	default:
		return "", "", false
	}
}

// Publish sends the event as JSON, retrying with exponential backoff. It
// returns nil without publishing for events not tied to a vessel.
func (p *Publisher) Publish(ctx context.Context, ev events.Event) error {
	topic, vesselID, ok := p.route(ev)
	if !ok {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Kind(), err)
	}

	var publishErr error
retry:
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qos, p.retain, payload)
		token.Wait()
		if publishErr = token.Error(); publishErr == nil {
			p.log.Debugf("published %s %s to %s", ev.Kind(), ev.EventID(), topic)
			return nil
		}
		p.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			publishErr = ctx.Err()
			break retry
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	coremon.CaptureException(publishErr, map[string]string{
		"module":    "mqtt",
		"vessel_id": vesselID,
		"event":     ev.Kind(),
	})
	return fmt.Errorf("publish %s to %s: %w", ev.Kind(), topic, publishErr)
}

// Start forwards bus events to the broker until ctx is canceled or the bus
// is closed. Failures are logged and reported, never retried past Publish.
func (p *Publisher) Start(ctx context.Context, bus *eventbus.Bus) <-chan struct{} {
	return eventbus.Start(ctx, bus, func(ev events.Event) {
		if err := p.Publish(ctx, ev); err != nil {
			p.log.Warnf("notify: %v", err)
		}
	})
}

// Disconnect announces offline status and closes the connection.
func (p *Publisher) Disconnect() {
	if p.cli == nil || !p.cli.IsConnected() {
		return
	}
	if p.statusTopic != "" {
		p.cli.Publish(p.statusTopic, p.qos, true, statusOffline).WaitTimeout(time.Second)
	}
	p.cli.Disconnect(250)
}
