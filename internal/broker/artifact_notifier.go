package broker

import (
	"context"
	"log/slog"

	"github.com/cmu-study-buddy/course-crawler/config"
	"github.com/cmu-study-buddy/course-crawler/internal/model"
	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress/lz4"
)

// ArtifactNotifier - kafka client for the artifact-ingested topic. The
// downstream indexer consumes these events to pick up new PDFs without
// rescanning the content store.
type ArtifactNotifier struct {
	kafkaWriter *kafka.Writer
	serviceName string
	cfg         *config.ProducerConfig
}

func NewArtifactNotifier(serviceName string, cfg *config.ProducerConfig) *ArtifactNotifier {
	kafkaWriter := kafka.Writer{
		Addr:         kafka.TCP(cfg.Addr...),
		Topic:        cfg.TopicName,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxAttempts,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Error("failed to send messages to kafka.", slog.String("err", err.Error()))
			}
		},
		Compression: kafka.Compression(new(lz4.Codec).Code()),
	}
	return &ArtifactNotifier{
		kafkaWriter: &kafkaWriter,
		serviceName: serviceName,
		cfg:         cfg,
	}
}

func (n *ArtifactNotifier) SendArtifactEvent(courseCode string, link model.ClassifiedLink) {
	event := model.ArtifactEvent{
		CourseCode: courseCode,
		Category:   link.Category.String(),
		Filename:   link.LocalName,
		SourceURL:  link.URL,
	}

	body, err := jsoniter.Marshal(event)
	if err != nil {
		slog.Error("marshaling error.", slog.String("err", err.Error()), slog.Any("event", event))
		return
	}

	err = n.kafkaWriter.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(courseCode),
		Value: body,
	})
	if err != nil {
		slog.Error("failed to send artifact event.", slog.String("err", err.Error()))
		return
	}
	slog.Debug("artifact event sent.", slog.String("course", courseCode),
		slog.String("filename", link.LocalName))
}

func (n *ArtifactNotifier) Close() {
	err := n.kafkaWriter.Close()
	if err != nil {
		slog.Error("failed to close kafka writer.", slog.String("err", err.Error()))
	}
}
