// Package receiver subscribes a per-run work queue to the sensor fan-out
// topic and turns its messages into a lazy stream of events.
package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
)

// SQSAPI is the slice of the SQS API the receiver needs.
type SQSAPI interface {
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	SetQueueAttributes(ctx context.Context, params *sqs.SetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error)
	DeleteQueue(ctx context.Context, params *sqs.DeleteQueueInput, optFns ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// SNSAPI is the slice of the SNS API the receiver needs.
type SNSAPI interface {
	Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
	Unsubscribe(ctx context.Context, params *sns.UnsubscribeInput, optFns ...func(*sns.Options)) (*sns.UnsubscribeOutput, error)
}

// QueueSubscription owns a uuid-named queue subscribed to the sensor topic
// for the duration of one run. Open creates and subscribes the queue;
// Close deletes both the subscription and the queue.
type QueueSubscription struct {
	sqs      SQSAPI
	sns      SNSAPI
	topicARN string
	logger   *log.Logger

	queueURL        string
	queueARN        string
	subscriptionARN string
}

// NewQueueSubscription prepares a subscription to the given topic.
func NewQueueSubscription(sqsClient SQSAPI, snsClient SNSAPI, topicARN string, logger *log.Logger) (*QueueSubscription, error) {
	if sqsClient == nil || snsClient == nil {
		return nil, errors.New("receiver: nil queue clients")
	}
	if topicARN == "" {
		return nil, errors.New("receiver: topic ARN required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &QueueSubscription{sqs: sqsClient, sns: snsClient, topicARN: topicARN, logger: logger}, nil
}

// Open creates the queue, attaches the topic-allow policy and subscribes
// the queue to the topic.
func (s *QueueSubscription) Open(ctx context.Context) error {
	queueName := uuid.NewString()
	created, err := s.sqs.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(queueName)})
	if err != nil {
		return fmt.Errorf("receiver: create queue: %w", err)
	}
	s.queueURL = aws.ToString(created.QueueUrl)

	attrs, err := s.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(s.queueURL),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return fmt.Errorf("receiver: queue attributes: %w", err)
	}
	s.queueARN = attrs.Attributes[string(sqstypes.QueueAttributeNameQueueArn)]
	s.logger.Printf("receiver: created queue %s", s.queueARN)

	policy, err := subscriptionPolicy(s.queueARN, s.topicARN)
	if err != nil {
		return err
	}
	if _, err := s.sqs.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
		QueueUrl:   aws.String(s.queueURL),
		Attributes: map[string]string{"Policy": policy},
	}); err != nil {
		return fmt.Errorf("receiver: attach queue policy: %w", err)
	}

	subscribed, err := s.sns.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn:              aws.String(s.topicARN),
		Protocol:              aws.String("sqs"),
		Endpoint:              aws.String(s.queueARN),
		ReturnSubscriptionArn: true,
	})
	if err != nil {
		return fmt.Errorf("receiver: subscribe queue: %w", err)
	}
	s.subscriptionARN = aws.ToString(subscribed.SubscriptionArn)
	s.logger.Printf("receiver: subscribed queue to topic %s", s.topicARN)
	return nil
}

// Close deletes the queue and the topic subscription.
func (s *QueueSubscription) Close(ctx context.Context) error {
	s.logger.Printf("receiver: deleting queue %s and subscription %s", s.queueURL, s.subscriptionARN)
	var firstErr error
	if s.queueURL != "" {
		if _, err := s.sqs.DeleteQueue(ctx, &sqs.DeleteQueueInput{QueueUrl: aws.String(s.queueURL)}); err != nil {
			firstErr = fmt.Errorf("receiver: delete queue: %w", err)
		}
	}
	if s.subscriptionARN != "" {
		if _, err := s.sns.Unsubscribe(ctx, &sns.UnsubscribeInput{SubscriptionArn: aws.String(s.subscriptionARN)}); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("receiver: unsubscribe: %w", err)
		}
	}
	return firstErr
}

// QueueURL returns the URL of the run's queue once Open succeeded.
func (s *QueueSubscription) QueueURL() string {
	return s.queueURL
}

// subscriptionPolicy builds the IAM policy document that lets the topic
// send messages to the queue.
func subscriptionPolicy(queueARN, topicARN string) (string, error) {
	document := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{{
			"Sid":       "allow-subscription-" + topicARN,
			"Effect":    "Allow",
			"Principal": map[string]string{"AWS": "*"},
			"Action":    "SQS:SendMessage",
			"Resource":  queueARN,
			"Condition": map[string]any{
				"ArnEquals": map[string]string{"aws:SourceArn": topicARN},
			},
		}},
	}
	policy, err := json.Marshal(document)
	if err != nil {
		return "", fmt.Errorf("receiver: marshal queue policy: %w", err)
	}
	return string(policy), nil
}
