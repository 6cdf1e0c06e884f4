package receiver

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type stubQueue struct {
	batches [][]sqstypes.Message
	deleted []*sqs.DeleteMessageBatchInput

	createQueueInput *sqs.CreateQueueInput
	setAttrsInput    *sqs.SetQueueAttributesInput
	deletedQueueURL  string
	receiveQueueURLs []string
	queueARN         string
	queueURLOnCreate string
}

func (s *stubQueue) CreateQueue(_ context.Context, params *sqs.CreateQueueInput, _ ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	s.createQueueInput = params
	return &sqs.CreateQueueOutput{QueueUrl: aws.String(s.queueURLOnCreate)}, nil
}

func (s *stubQueue) GetQueueAttributes(_ context.Context, _ *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return &sqs.GetQueueAttributesOutput{
		Attributes: map[string]string{string(sqstypes.QueueAttributeNameQueueArn): s.queueARN},
	}, nil
}

func (s *stubQueue) SetQueueAttributes(_ context.Context, params *sqs.SetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error) {
	s.setAttrsInput = params
	return &sqs.SetQueueAttributesOutput{}, nil
}

func (s *stubQueue) DeleteQueue(_ context.Context, params *sqs.DeleteQueueInput, _ ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error) {
	s.deletedQueueURL = aws.ToString(params.QueueUrl)
	return &sqs.DeleteQueueOutput{}, nil
}

func (s *stubQueue) ReceiveMessage(_ context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	s.receiveQueueURLs = append(s.receiveQueueURLs, aws.ToString(params.QueueUrl))
	if len(s.batches) == 0 {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (s *stubQueue) DeleteMessageBatch(_ context.Context, params *sqs.DeleteMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error) {
	s.deleted = append(s.deleted, params)
	return &sqs.DeleteMessageBatchOutput{}, nil
}

type stubTopic struct {
	subscribeInput  *sns.SubscribeInput
	unsubscribedARN string
}

func (s *stubTopic) Subscribe(_ context.Context, params *sns.SubscribeInput, _ ...func(*sns.Options)) (*sns.SubscribeOutput, error) {
	s.subscribeInput = params
	return &sns.SubscribeOutput{SubscriptionArn: aws.String("arn:aws:sns:sub-1")}, nil
}

func (s *stubTopic) Unsubscribe(_ context.Context, params *sns.UnsubscribeInput, _ ...func(*sns.Options)) (*sns.UnsubscribeOutput, error) {
	s.unsubscribedARN = aws.ToString(params.SubscriptionArn)
	return &sns.UnsubscribeOutput{}, nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func message(body string) sqstypes.Message {
	return sqstypes.Message{
		Body:          aws.String(body),
		MessageId:     aws.String("m-" + body[:min(4, len(body))]),
		ReceiptHandle: aws.String("rh-" + body[:min(4, len(body))]),
	}
}

func eventBody(eventID string) string {
	return `{"Message": "{\"locationId\":\"site-1\",\"eventId\":\"` + eventID + `\",\"value\":1,\"timestamp\":1700000000}"}`
}

func TestQueueSubscriptionOpenAndClose(t *testing.T) {
	queue := &stubQueue{queueURLOnCreate: "https://sqs/run-queue", queueARN: "arn:aws:sqs:run-queue"}
	topic := &stubTopic{}
	subscription, err := NewQueueSubscription(queue, topic, "arn:aws:sns:readings", quietLogger())
	if err != nil {
		t.Fatalf("new subscription: %v", err)
	}

	if err := subscription.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	if subscription.QueueURL() != "https://sqs/run-queue" {
		t.Fatalf("unexpected queue URL: %q", subscription.QueueURL())
	}
	if queue.createQueueInput == nil || aws.ToString(queue.createQueueInput.QueueName) == "" {
		t.Fatalf("queue must be created with a generated name")
	}
	policy := queue.setAttrsInput.Attributes["Policy"]
	if !strings.Contains(policy, "arn:aws:sqs:run-queue") || !strings.Contains(policy, "arn:aws:sns:readings") {
		t.Fatalf("policy must reference queue and topic: %s", policy)
	}
	if aws.ToString(topic.subscribeInput.Protocol) != "sqs" {
		t.Fatalf("unexpected subscribe protocol: %q", aws.ToString(topic.subscribeInput.Protocol))
	}
	if aws.ToString(topic.subscribeInput.Endpoint) != "arn:aws:sqs:run-queue" {
		t.Fatalf("subscription endpoint must be the queue ARN")
	}

	if err := subscription.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if queue.deletedQueueURL != "https://sqs/run-queue" {
		t.Fatalf("queue was not deleted, got %q", queue.deletedQueueURL)
	}
	if topic.unsubscribedARN != "arn:aws:sns:sub-1" {
		t.Fatalf("subscription was not removed, got %q", topic.unsubscribedARN)
	}
}

func TestReceiverYieldsDecodedEvents(t *testing.T) {
	queue := &stubQueue{batches: [][]sqstypes.Message{
		{message(eventBody("e1")), message(eventBody("e2"))},
		{message(eventBody("e3"))},
	}}
	receiver, err := NewReceiver(queue, "https://sqs/run-queue", quietLogger())
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}

	var ids []string
	for event := range receiver.Events(context.Background()) {
		ids = append(ids, event.EventID)
		if len(ids) == 3 {
			break
		}
	}
	if len(ids) != 3 || ids[0] != "e1" || ids[1] != "e2" || ids[2] != "e3" {
		t.Fatalf("unexpected events: %v", ids)
	}
	if len(queue.deleted) != 2 {
		t.Fatalf("expected 2 delete batches, got %d", len(queue.deleted))
	}
	if len(queue.deleted[0].Entries) != 2 {
		t.Fatalf("first delete batch must cover both messages, got %d entries", len(queue.deleted[0].Entries))
	}
}

func TestReceiverSkipsMalformedMessages(t *testing.T) {
	queue := &stubQueue{batches: [][]sqstypes.Message{
		{message("not json"), message(eventBody("good"))},
	}}
	receiver, err := NewReceiver(queue, "https://sqs/run-queue", quietLogger())
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}

	var ids []string
	for event := range receiver.Events(context.Background()) {
		ids = append(ids, event.EventID)
		break
	}
	if len(ids) != 1 || ids[0] != "good" {
		t.Fatalf("malformed message must be skipped, got %v", ids)
	}
}

func TestReceiverStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	queue := &stubQueue{batches: [][]sqstypes.Message{{message(eventBody("e1"))}}}
	receiver, err := NewReceiver(queue, "https://sqs/run-queue", quietLogger())
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}

	count := 0
	for range receiver.Events(ctx) {
		count++
	}
	if count != 0 {
		t.Fatalf("cancelled context must end the stream, got %d events", count)
	}
}
