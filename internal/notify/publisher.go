// Package notify publishes practice events to an MQTT broker so classroom
// dashboards can react in real time. Publishing is fire-and-forget: a dead
// broker never fails an API request.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Options configures the MQTT publisher.
type Options struct {
	BrokerURL string
	ClientID  string
	Topic     string
	Username  string
	Password  string
	Log       zerolog.Logger
}

// Publisher sends result-recorded events to an MQTT topic.
type Publisher struct {
	client mqtt.Client
	topic  string
	log    zerolog.Logger
}

// Connect creates and connects a publisher. The paho client reconnects on
// its own after broker outages.
func Connect(opts Options) (*Publisher, error) {
	log := opts.Log.With().Str("component", "notify").Logger()

	mqttOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetConnectTimeout(10 * time.Second)

	if opts.Username != "" {
		mqttOpts.SetUsername(opts.Username)
		mqttOpts.SetPassword(opts.Password)
	}

	mqttOpts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Info().Str("broker", opts.BrokerURL).Msg("MQTT connected")
	})
	mqttOpts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	client := mqtt.NewClient(mqttOpts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("MQTT connect timeout (broker=%s)", opts.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTT connect: %w", err)
	}

	return &Publisher{
		client: client,
		topic:  opts.Topic,
		log:    log,
	}, nil
}

// ResultRecordedEvent is the payload published when a practice result is
// stored.
type ResultRecordedEvent struct {
	Event      string    `json:"event"`
	StudentID  string    `json:"student_id"`
	WordID     int64     `json:"word_id"`
	ResultID   int64     `json:"result_id"`
	PronScore  *float64  `json:"pron_score"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ResultRecorded publishes a result-recorded event. Errors are logged and
// swallowed; result persistence never depends on the broker.
func (p *Publisher) ResultRecorded(studentID string, wordID, resultID int64, pronScore *float64) {
	payload, err := json.Marshal(ResultRecordedEvent{
		Event:      "result_recorded",
		StudentID:  studentID,
		WordID:     wordID,
		ResultID:   resultID,
		PronScore:  pronScore,
		RecordedAt: time.Now().UTC(),
	})
	if err != nil {
		p.log.Error().Err(err).Msg("marshal result event")
		return
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			p.log.Warn().Err(token.Error()).Str("topic", p.topic).Msg("publish failed")
		}
	}()
}

// IsConnected reports broker connectivity for health checks.
func (p *Publisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker, allowing in-flight publishes to finish.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
