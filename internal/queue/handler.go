package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/factgraph/backend/internal/storage"
	"github.com/factgraph/backend/internal/util"
	"github.com/factgraph/backend/pkg/common"
	"github.com/factgraph/backend/pkg/leaselock"
	"github.com/factgraph/backend/pkg/logger"
	"github.com/factgraph/backend/pkg/pipeline"
	"github.com/factgraph/backend/pkg/store"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rabbitmq/amqp091-go"
)

// IngestDocumentMsg is the payload on the ingest queue. FileKey points at
// the uploaded object in S3.
type IngestDocumentMsg struct {
	Message            string `json:"message"`
	DataRoomID         string `json:"data_room_id"`
	CorrelationID      string `json:"correlation_id"`
	FileKey            string `json:"file_key"`
	FileName           string `json:"file_name"`
	MimeType           string `json:"mime_type"`
	ForcedDocumentType string `json:"forced_document_type,omitempty"`
	SkipClassification bool   `json:"skip_classification,omitempty"`
}

const s3FetchTries = 3

// ProcessIngestMessage handles one ingest request: it downloads the
// document from S3, runs it through the pipeline under a per-data-room
// lease and appends the outcome to the event ledger. The lease keeps
// worker replicas from interleaving graph writes for the same data room.
// A failed pipeline run returns an error so the message takes the retry
// path.
func ProcessIngestMessage(
	ctx context.Context,
	client *s3.Client,
	repo store.GraphRepository,
	lock *leaselock.Client,
	pipe *pipeline.Pipeline,
	ch *amqp091.Channel,
	msgBody string,
) error {
	var msg IngestDocumentMsg
	if err := json.Unmarshal([]byte(msgBody), &msg); err != nil {
		return fmt.Errorf("failed to unmarshal ingest message: %w", err)
	}
	if msg.FileKey == "" || msg.DataRoomID == "" {
		return fmt.Errorf("ingest message is missing file_key or data_room_id")
	}

	logger.Info("[Queue] Processing document",
		"file", msg.FileName,
		"data_room_id", msg.DataRoomID,
		"correlation_id", msg.CorrelationID,
	)

	data, err := util.RetryWithContext(ctx, s3FetchTries, func(ctx context.Context) ([]byte, error) {
		return storage.GetFile(ctx, client, msg.FileKey)
	})
	if err != nil {
		return fmt.Errorf("failed to fetch document %s: %w", msg.FileKey, err)
	}

	var result pipeline.Result
	err = lock.WithLease(ctx, "dataroom:"+msg.DataRoomID, leaselock.Options{
		TTL:  2 * time.Minute,
		Wait: true,
	}, func(ctx context.Context) error {
		result = pipe.ProcessDocument(
			ctx,
			bytes.NewReader(data),
			msg.FileName,
			msg.MimeType,
			msg.DataRoomID,
			msg.CorrelationID,
			pipeline.Options{
				SkipClassification: msg.SkipClassification,
				ForcedDocumentType: msg.ForcedDocumentType,
			},
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to acquire data room lease for %s: %w", msg.DataRoomID, err)
	}

	if err := appendResultToLedger(ctx, repo, msg, result); err != nil {
		// The ledger is the audit trail; a processed document without an
		// audit entry must be retried.
		return err
	}

	if err := publishResultEvent(ch, msg, result); err != nil {
		logger.Error("[Queue] Failed to publish result event",
			"file", msg.FileName, "err", err)
	}

	if !result.Succeeded() {
		return fmt.Errorf("document %s failed at stage %s: %s",
			msg.FileName, result.CompletedStage, result.Error)
	}

	if util.GetEnvBool("ARCHIVE_PROCESSED", false) {
		archiveDocument(ctx, client, msg, data)
	}

	logger.Info("[Queue] Document processed",
		"file", msg.FileName,
		"type", result.DocumentType,
		"entities", result.EntityCount,
		"duration", result.Duration,
	)
	return nil
}

// archiveDocument moves a processed document out of the inbox: the bytes
// are rewritten under processed/<data_room_id>/ and the original object
// is deleted. Archive failures are only logged since the graph writes
// and the ledger entry already happened.
func archiveDocument(ctx context.Context, client *s3.Client, msg IngestDocumentMsg, data []byte) {
	archived, err := storage.PutFile(ctx, client,
		"processed/"+msg.DataRoomID, msg.FileName, common.NewID(), bytes.NewReader(data))
	if err != nil {
		logger.Error("[Queue] Failed to archive document", "file", msg.FileName, "err", err)
		return
	}
	if err := storage.DeleteFile(ctx, client, msg.FileKey); err != nil {
		logger.Error("[Queue] Failed to delete archived original", "key", msg.FileKey, "err", err)
		return
	}
	logger.Debug("[Queue] Document archived", "from", msg.FileKey, "to", archived)
}

func appendResultToLedger(
	ctx context.Context,
	repo store.GraphRepository,
	msg IngestDocumentMsg,
	result pipeline.Result,
) error {
	eventType := "document_processed"
	if !result.Succeeded() {
		eventType = "document_failed"
	}

	eventData := map[string]string{
		"file_name":       msg.FileName,
		"document_type":   result.DocumentType,
		"completed_stage": string(result.CompletedStage),
		"fact_count":      strconv.Itoa(result.FactCount),
		"entity_count":    strconv.Itoa(result.EntityCount),
		"relation_count":  strconv.Itoa(result.RelationCount),
	}
	if result.Error != "" {
		eventData["error"] = result.Error
	}

	record := common.NewLedgerRecord(common.NewLedgerRecordParams{
		EventType:     eventType,
		SourceID:      msg.FileKey,
		SourceType:    "document",
		DataRoomID:    msg.DataRoomID,
		CorrelationID: result.CorrelationID,
		EventData:     eventData,
	})

	seq, err := repo.AppendLedger(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to append ledger record for %s: %w", msg.FileName, err)
	}
	logger.Debug("[Queue] Ledger record appended", "sequence", seq, "event", eventType)
	return nil
}

func publishResultEvent(ch *amqp091.Channel, msg IngestDocumentMsg, result pipeline.Result) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result event: %w", err)
	}

	topic := "documents.processed." + msg.DataRoomID
	if !result.Succeeded() {
		topic = "documents.failed." + msg.DataRoomID
	}
	return PublishTopic(ch, topic, body)
}
