package sqsnotif_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/programme-lv/runtrack/api"
	"github.com/programme-lv/runtrack/internal/notify/sqsnotif"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestNotify(t *testing.T) {
	fake := &fakeSQS{}
	n := sqsnotif.New(fake, "https://sqs.example/queue")

	ev := api.StatusEvent{
		Header:     api.NewHeader("job-1", api.JobFinishedMsg),
		Kind:       "run",
		PrevStatus: "RU",
		Status:     "OK",
	}
	require.NoError(t, n.Notify(context.Background(), ev))
	require.Len(t, fake.inputs, 1)

	in := fake.inputs[0]
	assert.Equal(t, "https://sqs.example/queue", aws.ToString(in.QueueUrl))
	assert.Equal(t, "job_finished", aws.ToString(in.MessageAttributes["msg_type"].StringValue))

	var got api.StatusEvent
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &got))
	assert.Equal(t, ev, got)
}

func TestNotify_SendError(t *testing.T) {
	boom := errors.New("throttled")
	n := sqsnotif.New(&fakeSQS{err: boom}, "q")
	err := n.Notify(context.Background(), api.StatusEvent{})
	require.ErrorIs(t, err, boom)
}
