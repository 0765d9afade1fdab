package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher forwards outbox entries to an SQS queue. FIFO queues are
// grouped by aggregate so each appointment's events stay ordered.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
	fifo     bool
}

var _ DeliveryHandler = (*SQSPublisher)(nil)

func NewSQSPublisher(client sqsAPI, queueURL string) *SQSPublisher {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

func (p *SQSPublisher) Handle(ctx context.Context, entry OutboxEntry) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(entry.Payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(entry.Type)},
		},
	}
	if entry.OrgID != "" {
		input.MessageAttributes["org_id"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(entry.OrgID)}
	}
	if p.fifo {
		input.MessageGroupId = aws.String(entry.Aggregate)
		input.MessageDeduplicationId = aws.String(entry.ID.String())
	}
	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("events: failed to send SQS message: %w", err)
	}
	return nil
}
