package natsnotif_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/programme-lv/runtrack/api"
	"github.com/programme-lv/runtrack/internal/notify/natsnotif"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subj string
	data []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(subj string, data []byte) error {
	f.msgs = append(f.msgs, published{subj, data})
	return f.err
}

func TestNotify(t *testing.T) {
	pub := &fakePublisher{}
	n := natsnotif.New(pub, "runtrack.status")

	ev := api.StatusEvent{
		Header: api.NewHeader("job-1", api.StatusChangedMsg),
		Kind:   "submission",
		Status: "RU",
	}
	require.NoError(t, n.Notify(context.Background(), ev))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "runtrack.status.submission", pub.msgs[0].subj)

	var got api.StatusEvent
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &got))
	assert.Equal(t, ev, got)
}

func TestNotify_PublishError(t *testing.T) {
	boom := errors.New("connection closed")
	n := natsnotif.New(&fakePublisher{err: boom}, "runtrack.status")
	require.ErrorIs(t, n.Notify(context.Background(), api.StatusEvent{}), boom)
}
