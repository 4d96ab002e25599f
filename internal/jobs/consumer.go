package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader    messageReader
	processor *Processor
	workers   int
}

func NewConsumer(brokers []string, topic, groupID string, processor *Processor, workers int) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})
	return newConsumer(reader, processor, workers)
}

func newConsumer(reader messageReader, processor *Processor, workers int) *Consumer {
	return &Consumer{reader: reader, processor: processor, workers: max(workers, 1)}
}

// Run consumes tasks until ctx is cancelled, processing up to workers tasks
// at once. A message is committed once its task has been handled, including
// tasks that could not be parsed.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup
	defer wg.Wait()

	logrus.WithField("workers", c.workers).Info("colorize consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				logrus.Info("colorize consumer stopped")
				return nil
			}
			logrus.WithError(err).Error("error reading message from kafka")
			return err
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil
		}
		wg.Add(1)
		go func(msg kafka.Message) {
			defer wg.Done()
			defer func() { <-sem }()
			c.handle(ctx, msg)
		}(msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	log := logrus.WithFields(logrus.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	var task Task
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		log.WithError(err).Error("failed to parse task")
	} else if err := c.processor.Process(ctx, task); err != nil {
		log.WithError(err).WithField("job_id", task.JobID).Error("processing failed")
		if ctx.Err() != nil {
			// left uncommitted so the task is redelivered
			return
		}
	}

	if err := c.reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
		log.WithError(err).Error("failed to commit message")
	}
}
