package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/rotisserie/eris"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
)

// Message is the JSON value published for each record.
type Message struct {
	Row           int    `json:"row"`
	SightingDate  string `json:"sighting_date"`
	ReportingDate string `json:"reporting_date"`
	Location      string `json:"location"`
	Lat           string `json:"lat"`
	Lng           string `json:"lng"`
	Description   string `json:"description"`
	Shape         string `json:"shape"`
	Duration      string `json:"duration"`
	PlaceLabel    string `json:"place_label,omitempty"`
	Provider      string `json:"geo_provider,omitempty"`
}

// messageWriter is the subset of *kafkago.Writer used by the sink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces one message per record to a Kafka topic.
// It implements pipeline.Loader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: false,
	}
	return &Writer{writer: w, logger: logger}
}

// Load publishes rec and waits for all in-sync replicas to acknowledge it.
func (w *Writer) Load(ctx context.Context, rec domain.ResolvedSighting) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return eris.Wrapf(err, "kafka: publish row %d", rec.Row)
	}
	w.logger.Debug("sighting published", "row", rec.Row, "geo_status", rec.Geo.Status())
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a record into a Kafka message keyed by its row number.
func serializeToMessage(rec domain.ResolvedSighting) (kafkago.Message, error) {
	row := strconv.Itoa(rec.Row)
	data, err := json.Marshal(Message{
		Row:           rec.Row,
		SightingDate:  rec.SightingDate(),
		ReportingDate: rec.ReportingDate(),
		Location:      rec.Location,
		Lat:           rec.LatText(),
		Lng:           rec.LngText(),
		Description:   rec.Description,
		Shape:         rec.Shape,
		Duration:      rec.Duration,
		PlaceLabel:    rec.Geo.PlaceLabel,
		Provider:      rec.Geo.Provider,
	})
	if err != nil {
		return kafkago.Message{}, eris.Wrapf(err, "kafka: serialize row %d", rec.Row)
	}
	return kafkago.Message{
		Key:   []byte(row),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source_row", Value: []byte(row)},
			{Key: "geo_status", Value: []byte(rec.Geo.Status())},
		},
	}, nil
}
