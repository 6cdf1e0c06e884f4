package receiver

import (
	"context"
	"errors"
	"iter"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"gasmon/internal/observability/metrics"
	telemetry "gasmon/internal/telemetry/domain"
)

const (
	receiveBatchSize   = 10
	receiveWaitSeconds = 1
)

// Receiver produces a lazy, unbounded stream of events by polling the
// run's queue. Malformed messages are logged, counted and skipped; the
// pipeline never sees them.
type Receiver struct {
	sqs      SQSAPI
	queueURL string
	logger   *log.Logger
}

// NewReceiver constructs a receiver over an opened queue subscription.
func NewReceiver(sqsClient SQSAPI, queueURL string, logger *log.Logger) (*Receiver, error) {
	if sqsClient == nil {
		return nil, errors.New("receiver: nil sqs client")
	}
	if queueURL == "" {
		return nil, errors.New("receiver: queue URL required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Receiver{sqs: sqsClient, queueURL: queueURL, logger: logger}, nil
}

// Events returns the event stream. Production is pull-driven: the queue is
// polled only while the consumer keeps iterating. The stream ends when the
// context is done, so a silent topic still lets the run finish.
func (r *Receiver) Events(ctx context.Context) iter.Seq[telemetry.Event] {
	return func(yield func(telemetry.Event) bool) {
		for ctx.Err() == nil {
			messages, err := r.receive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.logger.Printf("receiver: poll error: %v", err)
				continue
			}
			for _, message := range messages {
				event, err := decodeMessage(aws.ToString(message.Body))
				if err != nil {
					r.logger.Printf("receiver: skipping invalid message %s: %v", aws.ToString(message.MessageId), err)
					metrics.IncMalformedSkipped()
					continue
				}
				metrics.IncEventsReceived()
				if !yield(event) {
					return
				}
			}
		}
	}
}

// receive reads one batch from the queue and deletes it before returning.
func (r *Receiver) receive(ctx context.Context) ([]sqstypes.Message, error) {
	start := time.Now()
	out, err := r.sqs.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(r.queueURL),
		MaxNumberOfMessages: receiveBatchSize,
		WaitTimeSeconds:     receiveWaitSeconds,
	})
	metrics.ObservePollLatency(time.Since(start))
	if err != nil {
		return nil, err
	}
	r.deleteMessages(ctx, out.Messages)
	return out.Messages, nil
}

func (r *Receiver) deleteMessages(ctx context.Context, messages []sqstypes.Message) {
	if len(messages) == 0 {
		return
	}
	entries := make([]sqstypes.DeleteMessageBatchRequestEntry, 0, len(messages))
	for i, message := range messages {
		entries = append(entries, sqstypes.DeleteMessageBatchRequestEntry{
			Id:            aws.String(strconv.Itoa(i)),
			ReceiptHandle: message.ReceiptHandle,
		})
	}
	deleted, err := r.sqs.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(r.queueURL),
		Entries:  entries,
	})
	if err != nil {
		r.logger.Printf("receiver: delete batch error: %v", err)
		return
	}
	for _, failure := range deleted.Failed {
		r.logger.Printf("receiver: failed to delete message %s: %s", aws.ToString(failure.Id), aws.ToString(failure.Message))
	}
}
