// Package amqpclient publishes JSON messages on an AMQP broker. A connection
// is opened and closed for every message.
package amqpclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/ptgott/e2ekit/logging"
)

// AppID identifies the test suite to the broker, both as the connection name
// and as the app id of every message.
const AppID = "wdio-test"

// Message describes what to publish and where.
type Message struct {
	Exchange   string
	RoutingKey string
	// Type is the message type name set in the AMQP properties.
	Type string
	// Payload is marshalled to JSON.
	Payload any
	// CorrelationID is generated when blank.
	CorrelationID string
}

// newPublishing builds the AMQP message for m.
func newPublishing(m Message, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(m.Payload)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("can't marshal the payload: %w", err)
	}

	id := m.CorrelationID
	if id == "" {
		id = uuid.NewString()
	}

	return amqp.Publishing{
		AppId:         AppID,
		ContentType:   "application/json",
		CorrelationId: id,
		Timestamp:     now,
		Type:          m.Type,
		Body:          body,
	}, nil
}

// Publish sends m to the broker at url. tlsCfg is used for amqps URLs and may
// be nil. Failures are logged and returned as "amqp error".
func Publish(ctx context.Context, url string, m Message, tlsCfg *tls.Config) error {
	if err := publish(ctx, url, m, tlsCfg); err != nil {
		logging.DetailError(err)
		return fmt.Errorf("amqp error: %w", err)
	}
	log.Debug().
		Str("exchange", m.Exchange).
		Str("routingKey", m.RoutingKey).
		Msg("amqp message sent")
	return nil
}

func publish(ctx context.Context, url string, m Message, tlsCfg *tls.Config) error {
	p, err := newPublishing(m, time.Now())
	if err != nil {
		return err
	}

	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(AppID)

	conn, err := amqp.DialConfig(url, amqp.Config{
		Properties:      props,
		Locale:          "en_US",
		TLSClientConfig: tlsCfg,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	return ch.PublishWithContext(ctx, m.Exchange, m.RoutingKey, false, false, p)
}
