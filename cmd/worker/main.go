package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/factgraph/backend/internal/db"
	"github.com/factgraph/backend/internal/queue"
	"github.com/factgraph/backend/internal/storage"
	"github.com/factgraph/backend/internal/util"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/factgraph/backend/pkg/classify"
	"github.com/factgraph/backend/pkg/extract"
	"github.com/factgraph/backend/pkg/extract/doc"
	"github.com/factgraph/backend/pkg/extract/invoice"
	"github.com/factgraph/backend/pkg/extract/jobcard"
	"github.com/factgraph/backend/pkg/extract/purchaseorder"
	"github.com/factgraph/backend/pkg/extract/tabular"
	"github.com/factgraph/backend/pkg/extract/vendormaster"
	"github.com/factgraph/backend/pkg/leaselock"
	"github.com/factgraph/backend/pkg/logger"
	"github.com/factgraph/backend/pkg/logger/console"
	"github.com/factgraph/backend/pkg/mapper"
	"github.com/factgraph/backend/pkg/pipeline"
	pgxstore "github.com/factgraph/backend/pkg/store/pgx"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	// Init s3 client
	client := storage.NewS3Client(ctx)

	// Init pgx client and apply migrations
	databaseURL := util.GetEnv("DATABASE_URL")
	if err := db.Migrate(databaseURL); err != nil {
		logger.Fatal("Failed to migrate database", "err", err)
	}
	pgConn, err := db.Connect(ctx)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	repo := pgxstore.NewGraphDBStorage(pgConn)
	lock := leaselock.New(pgConn)
	pipe := buildPipeline(repo)

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	queues := []string{queue.IngestQueue}
	if err := queue.SetupQueues(ch, queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	logger.Info("Listening for messages")

	// Single consumer channel with prefetch=1 so one document is processed
	// at a time across all queues.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.IngestQueue:
					processingErr = queue.ProcessIngestMessage(ctx, client, repo, lock, pipe, ch, string(qm.msg.Body))
				}

				// On error send to retry or dead-letter, otherwise ack the message
				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					handleProcessingError(consumerCh, qm.msg, qm.queueName)
				} else {
					err = qm.msg.Ack(false)
					if err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				logger.Info("Processing time", "duration", time.Since(startTime).Round(time.Millisecond))
				logger.Info("Waiting for next message")
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func buildPipeline(repo *pgxstore.GraphDBStorage) *pipeline.Pipeline {
	classifyCfg := classify.DefaultConfig()
	if path := util.GetEnv("CLASSIFY_CONFIG"); path != "" {
		cfg, err := classify.LoadConfig(path)
		if err != nil {
			logger.Fatal("Failed to load classifier config", "path", path, "err", err)
		}
		classifyCfg = cfg
	}

	mapperCfg := mapper.DefaultConfig()
	if path := util.GetEnv("MAPPING_CONFIG"); path != "" {
		cfg, err := mapper.LoadConfig(path)
		if err != nil {
			logger.Fatal("Failed to load mapping config", "path", path, "err", err)
		}
		mapperCfg = cfg
	}

	extractors := extract.NewRegistry()
	extractors.Register(invoice.NewInvoiceExtractor(), "invoice")
	extractors.Register(purchaseorder.NewPOExtractor(), "purchase_order")
	extractors.Register(jobcard.NewJobCardExtractor(), "job_card")
	extractors.Register(vendormaster.NewVendorMasterExtractor(), "vendor_master")
	extractors.Register(tabular.NewTabularExtractor(), "csv", "spreadsheet")
	extractors.Register(doc.NewDocExtractor(), "document")

	return pipeline.NewPipeline(pipeline.NewPipelineParams{
		Classifier: classify.NewClassifier(classify.NewClassifierParams{Config: classifyCfg}),
		Extractors: extractors,
		Mappers:    mapper.NewMappersFromConfig(mapperCfg),
		Repository: repo,
	})
}

func handleProcessingError(ch *amqp.Channel, msg amqp.Delivery, queueName string) {
	retries := 0
	if val, ok := msg.Headers["x-retries"]; ok {
		if v, ok := val.(int32); ok {
			retries = int(v)
		}
	}

	// After maxRetries attempts the message goes to the dead-letter queue
	maxRetries := util.GetEnvInt("QUEUE_MAX_RETRIES", 10)
	if retries >= maxRetries {
		dlqName := queueName + "_dlq"
		logger.Info("Sending message to DLQ", "dlq", dlqName)
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        msg.Body,
				Headers:     msg.Headers,
			},
		)
		if pubErr != nil {
			logger.Error("Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := msg.Headers
	if headers == nil {
		headers = amqp.Table{}
	}
	headers["x-retries"] = retries + 1

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}
