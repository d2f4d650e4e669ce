// Package sqsnotif publishes status events to an AWS SQS queue.
package sqsnotif

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/programme-lv/runtrack/api"
)

// SendMessageAPI is the part of *sqs.Client used for publishing.
type SendMessageAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SqsNotifier struct {
	client   SendMessageAPI
	queueUrl string
}

func New(client SendMessageAPI, queueUrl string) *SqsNotifier {
	return &SqsNotifier{
		client:   client,
		queueUrl: queueUrl,
	}
}

// NewFromDefaultConfig creates a notifier using the default AWS credential chain.
func NewFromDefaultConfig(ctx context.Context, region string, queueUrl string) (*SqsNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return New(sqs.NewFromConfig(cfg), queueUrl), nil
}

func (s *SqsNotifier) Notify(ctx context.Context, ev api.StatusEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueUrl),
		MessageBody: aws.String(string(b)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"msg_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(ev.MsgType)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
