package imagesync_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/labelhub/autotrain/internal/failure"
	"github.com/labelhub/autotrain/internal/imagesync"
	"github.com/labelhub/autotrain/internal/registry"
	"github.com/labelhub/autotrain/internal/upstream"
	"github.com/labelhub/autotrain/internal/upstream/mocks"
	"github.com/labelhub/autotrain/internal/workspace"
)

func newProject(t *testing.T) registry.Project {
	t.Helper()
	layout, err := workspace.NewLayout(t.TempDir(), "cats")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(layout.RawImages(), 0o755))
	return registry.Project{ID: "7", Name: "cats", Layout: layout}
}

func TestSync(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	p := newProject(t)

	client.EXPECT().ListUnconsumedBatches(gomock.Any(), upstream.ID("7")).Return([]upstream.Batch{
		{ID: "31", ProjectID: "7", LabelNo: "0"},
		{ID: "32", ProjectID: "7", LabelNo: "1"},
	}, nil)
	client.EXPECT().ListImageNames(gomock.Any(), upstream.ID("7"), upstream.ID("0")).Return([]string{"a.jpg", "b.jpg"}, nil)
	client.EXPECT().ListImageNames(gomock.Any(), upstream.ID("7"), upstream.ID("1")).Return([]string{}, nil)
	client.EXPECT().FetchImage(gomock.Any(), upstream.ID("7"), upstream.ID("0"), "a.jpg").Return([]byte("A"), nil)
	client.EXPECT().FetchImage(gomock.Any(), upstream.ID("7"), upstream.ID("0"), "b.jpg").Return([]byte("B"), nil)

	result, err := imagesync.New(client, imagesync.WithRetryDelay(0)).Sync(context.Background(), p)
	require.NoError(t, err)

	assert.True(t, result.HasNewImages())
	assert.Equal(t, []upstream.ID{"31", "32"}, result.RecordIDs())
	require.Len(t, result.Images, 2)
	assert.Equal(t, imagesync.ConsumedImage{
		RecordID: "31", LabelNo: "0", Name: "a.jpg", Path: p.Layout.RawImage("0", "a.jpg"),
	}, result.Images[0])

	data, err := os.ReadFile(p.Layout.RawImage("0", "b.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "B", string(data))
	assert.DirExists(t, p.Layout.LabelDir("1"), "label directory is created even when empty")
}

func TestSyncNoBatches(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().ListUnconsumedBatches(gomock.Any(), gomock.Any()).Return([]upstream.Batch{}, nil)

	result, err := imagesync.New(client).Sync(context.Background(), newProject(t))
	require.NoError(t, err)
	assert.False(t, result.HasNewImages())
	assert.Empty(t, result.RecordIDs())
}

func TestSyncOverwritesExistingImage(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	p := newProject(t)
	require.NoError(t, os.MkdirAll(p.Layout.LabelDir("0"), 0o755))
	require.NoError(t, os.WriteFile(p.Layout.RawImage("0", "a.jpg"), []byte("stale"), 0o644))

	client.EXPECT().ListUnconsumedBatches(gomock.Any(), gomock.Any()).
		Return([]upstream.Batch{{ID: "31", ProjectID: "7", LabelNo: "0"}}, nil)
	client.EXPECT().ListImageNames(gomock.Any(), gomock.Any(), gomock.Any()).Return([]string{"a.jpg"}, nil)
	client.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any(), "a.jpg").Return([]byte("fresh"), nil)

	_, err := imagesync.New(client).Sync(context.Background(), p)
	require.NoError(t, err)

	data, err := os.ReadFile(p.Layout.RawImage("0", "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestSyncRetriesOnce(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	p := newProject(t)

	client.EXPECT().ListUnconsumedBatches(gomock.Any(), gomock.Any()).
		Return([]upstream.Batch{{ID: "31", ProjectID: "7", LabelNo: "0"}}, nil)
	client.EXPECT().ListImageNames(gomock.Any(), gomock.Any(), gomock.Any()).Return([]string{"a.jpg"}, nil)
	gomock.InOrder(
		client.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any(), "a.jpg").
			Return(nil, failure.New(failure.KindUpstream, "server reported not ok")),
		client.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any(), "a.jpg").
			Return([]byte("A"), nil),
	)

	result, err := imagesync.New(client, imagesync.WithRetryDelay(0)).Sync(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, result.Images, 1)
	assert.FileExists(t, p.Layout.RawImage("0", "a.jpg"))
}

func TestSyncFailsAfterSecondFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	p := newProject(t)

	client.EXPECT().ListUnconsumedBatches(gomock.Any(), gomock.Any()).
		Return([]upstream.Batch{{ID: "31", ProjectID: "7", LabelNo: "0"}}, nil)
	client.EXPECT().ListImageNames(gomock.Any(), gomock.Any(), gomock.Any()).Return([]string{"a.jpg", "b.jpg", "c.jpg"}, nil)
	client.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any(), "a.jpg").Return([]byte("A"), nil)
	client.EXPECT().FetchImage(gomock.Any(), gomock.Any(), gomock.Any(), "b.jpg").
		Return(nil, errors.New("connection reset")).Times(2)
	// c.jpg is never requested

	result, err := imagesync.New(client, imagesync.WithRetryDelay(0)).Sync(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, failure.KindDownload, failure.KindOf(err))
	assert.Contains(t, err.Error(), "b.jpg")

	require.Len(t, result.Images, 1, "partial pull is reported for cleanup")
	assert.Equal(t, "a.jpg", result.Images[0].Name)
	assert.NoFileExists(t, p.Layout.RawImage("0", "b.jpg"))
}

func TestSyncUpstreamErrors(t *testing.T) {
	t.Parallel()

	t.Run("batch listing fails", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		client := mocks.NewMockClient(ctrl)
		client.EXPECT().ListUnconsumedBatches(gomock.Any(), gomock.Any()).
			Return(nil, failure.New(failure.KindUpstream, "no data"))

		result, err := imagesync.New(client).Sync(context.Background(), newProject(t))
		require.Error(t, err)
		assert.Equal(t, failure.KindUpstream, failure.KindOf(err))
		assert.False(t, result.HasNewImages())
	})

	t.Run("image name escapes label directory", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		client := mocks.NewMockClient(ctrl)
		client.EXPECT().ListUnconsumedBatches(gomock.Any(), gomock.Any()).
			Return([]upstream.Batch{{ID: "31", ProjectID: "7", LabelNo: "0"}}, nil)
		client.EXPECT().ListImageNames(gomock.Any(), gomock.Any(), gomock.Any()).Return([]string{"../../x.jpg"}, nil)

		_, err := imagesync.New(client).Sync(context.Background(), newProject(t))
		require.Error(t, err)
		assert.Equal(t, failure.KindUpstream, failure.KindOf(err))
	})
}
