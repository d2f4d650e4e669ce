package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/programme-lv/runtrack/api"
	"github.com/programme-lv/runtrack/internal/notify"
	"github.com/programme-lv/runtrack/internal/notify/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestMulti(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockNotifier(ctrl)
	second := mocks.NewMockNotifier(ctrl)

	ev := api.StatusEvent{Header: api.NewHeader("job-1", api.StatusChangedMsg), Status: "RU"}
	boom := errors.New("broker down")
	first.EXPECT().Notify(gomock.Any(), ev).Return(boom)
	second.EXPECT().Notify(gomock.Any(), ev).Return(nil)

	err := notify.Multi{first, second}.Notify(context.Background(), ev)
	require.ErrorIs(t, err, boom)
}

func TestNop(t *testing.T) {
	assert.NoError(t, notify.Nop{}.Notify(context.Background(), api.StatusEvent{}))
	assert.NoError(t, notify.Multi{}.Notify(context.Background(), api.StatusEvent{}))
}
