package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/weather-data-pipeline/internal/config"
	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// batchSize bounds the number of messages handed to one WriteMessages call.
const batchSize = 500

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces one message per processed observation to a Kafka topic.
// It implements pipeline.Exporter.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured sink topic.
// Messages are keyed by city and date, so the hash balancer keeps each city
// on one partition.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Name identifies the exporter in logs and metrics.
func (p *Publisher) Name() string { return "kafka" }

// Export serializes and publishes every row of the processed table.
func (p *Publisher) Export(ctx context.Context, run domain.Run, table *domain.Table, _ *domain.Analysis) error {
	if table == nil {
		return domain.ErrNotLoaded
	}
	if table.Len() == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, 0, min(batchSize, table.Len()))
	published := 0
	for i := range table.Rows {
		msg, err := serializeToMessage(run.ID, table, &table.Rows[i])
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
		if len(msgs) == batchSize {
			if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
				return fmt.Errorf("publish observations: %w", err)
			}
			published += len(msgs)
			msgs = msgs[:0]
		}
	}
	if len(msgs) > 0 {
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("publish observations: %w", err)
		}
		published += len(msgs)
	}

	p.logger.Info("published observations", "run_id", run.ID, "count", published)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// ObservationMessage is the JSON payload of one published observation.
type ObservationMessage struct {
	RunID                 string            `json:"run_id"`
	Date                  string            `json:"date"`
	City                  string            `json:"city"`
	TemperatureCelsius    *float64          `json:"temperature_celsius"`
	HumidityPercent       *float64          `json:"humidity_percent"`
	WindSpeedKPH          *float64          `json:"wind_speed_kph"`
	WeatherCondition      string            `json:"weather_condition"`
	Year                  int               `json:"year,omitempty"`
	Month                 int               `json:"month,omitempty"`
	Day                   int               `json:"day,omitempty"`
	TemperatureFahrenheit *float64          `json:"temperature_fahrenheit,omitempty"`
	Extra                 map[string]string `json:"extra,omitempty"`
}

// serializeToMessage marshals an observation into a Kafka message.
func serializeToMessage(runID string, table *domain.Table, o *domain.Observation) (kafkago.Message, error) {
	date := ""
	if o.Date.Valid {
		date = domain.FormatDate(o.Date.Time)
	}
	body := ObservationMessage{
		RunID:              runID,
		Date:               date,
		City:               o.City,
		TemperatureCelsius: floatPtr(o.Temperature.Float64, o.Temperature.Valid),
		HumidityPercent:    floatPtr(o.Humidity.Float64, o.Humidity.Valid),
		WindSpeedKPH:       floatPtr(o.WindSpeed.Float64, o.WindSpeed.Valid),
		WeatherCondition:   o.Condition,
	}
	if table.Derived {
		body.Year, body.Month, body.Day = o.Year, o.Month, o.Day
		body.TemperatureFahrenheit = floatPtr(o.TemperatureFahrenheit, o.Temperature.Valid)
	}
	if len(table.Extras) > 0 {
		body.Extra = make(map[string]string, len(table.Extras))
		for i, name := range table.Extras {
			if i < len(o.Extra) {
				body.Extra[name] = o.Extra[i]
			}
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(o.City + "|" + date),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "city", Value: []byte(o.City)},
		},
	}, nil
}

func floatPtr(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
