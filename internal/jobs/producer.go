package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type Producer interface {
	Send(ctx context.Context, task Task) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaProducer struct {
	writer messageWriter
	topic  string
}

const dialTimeout = 10 * time.Second

// NewKafkaProducer connects to the comma-separated brokers and makes sure
// topic exists. It fails when the first broker does not answer, so callers
// can fall back to NewInlineProducer.
func NewKafkaProducer(brokers, topic string) (Producer, error) {
	addrs := strings.Split(brokers, ",")

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", addrs[0])
	if err != nil {
		return nil, fmt.Errorf("failed to connect to kafka at %s: %w", brokers, err)
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		logrus.WithError(err).WithField("topic", topic).Warn("could not create topic (might already exist)")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	logrus.WithFields(logrus.Fields{"brokers": brokers, "topic": topic}).Info("kafka producer connected")
	return &kafkaProducer{writer: writer, topic: topic}, nil
}

func (p *kafkaProducer) Send(ctx context.Context, task Task) error {
	value, err := json.Marshal(task)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.JobID),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	logrus.WithFields(logrus.Fields{"job_id": task.JobID, "topic": p.topic}).Debug("task published")
	return nil
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}

// inlineProducer processes tasks in the server process when no broker is
// reachable. Tasks run one at a time in submission order.
type inlineProducer struct {
	processor *Processor
	queue     chan Task
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewInlineProducer(processor *Processor, backlog int) Producer {
	p := &inlineProducer{processor: processor, queue: make(chan Task, backlog)}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for task := range p.queue {
			if err := p.processor.Process(context.Background(), task); err != nil {
				logrus.WithError(err).WithField("job_id", task.JobID).Error("inline processing failed")
			}
		}
	}()
	return p
}

func (p *inlineProducer) Send(ctx context.Context, task Task) error {
	select {
	case p.queue <- task:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to queue task: %w", ctx.Err())
	}
}

// Close drains queued tasks before returning.
func (p *inlineProducer) Close() error {
	p.closeOnce.Do(func() { close(p.queue) })
	p.wg.Wait()
	return nil
}
