// Package publisher uploads a trained artifact and acknowledges the images it
// was trained on, or discards the images when training did not succeed.
package publisher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/labelhub/autotrain/internal/failure"
	"github.com/labelhub/autotrain/internal/imagesync"
	"github.com/labelhub/autotrain/internal/registry"
	"github.com/labelhub/autotrain/internal/upstream"
	"github.com/labelhub/autotrain/internal/workspace"
)

const (
	// DefaultRetryDelay is the pause before an acknowledgment is retried
	DefaultRetryDelay = time.Second

	ackTries = 2
)

// Result is the outcome of a publish.
type Result struct {
	Acknowledged []upstream.ID
	// PendingAcks are records the server did not accept; they stay unconsumed
	// and are pulled again next cycle.
	PendingAcks []upstream.ID
}

// Option configures a Publisher
type Option func(*Publisher)

// WithRetryDelay sets the pause before an acknowledgment is retried.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Publisher) {
		p.retryDelay = d
	}
}

// Publisher talks to the labeling server on behalf of a finished session.
type Publisher struct {
	client     upstream.Client
	retryDelay time.Duration
}

// New creates a Publisher.
func New(client upstream.Client, opts ...Option) *Publisher {
	p := &Publisher{
		client:     client,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish uploads the canonical artifact of project and then acknowledges every
// consumed record once. A missing artifact is a filesystem error and a failed
// upload an upstream error; in both cases nothing is acknowledged. Records whose
// acknowledgment fails twice are reported in PendingAcks without failing the publish.
func (p *Publisher) Publish(ctx context.Context, project registry.Project, pulled *imagesync.Result) (*Result, error) {
	artifact := project.Layout.Artifact()
	f, err := os.Open(artifact)
	if err != nil {
		return nil, failure.Wrap(failure.KindFileSystem, err, "open artifact %s", artifact)
	}
	defer func() {
		_ = f.Close()
	}()

	if err := p.client.UploadModel(ctx, project.ID, filepath.Base(artifact), f); err != nil {
		return nil, err
	}
	slog.Info("Uploaded model", "project", project.Name, "artifact", artifact)

	result := &Result{}
	for _, id := range pulled.RecordIDs() {
		if err := p.acknowledge(ctx, id); err != nil {
			slog.Error("Failed to acknowledge record", "project", project.Name, "record", id, "error", err)
			result.PendingAcks = append(result.PendingAcks, id)
			continue
		}
		result.Acknowledged = append(result.Acknowledged, id)
	}
	return result, nil
}

func (p *Publisher) acknowledge(ctx context.Context, id upstream.ID) error {
	op := func() (struct{}, error) {
		return struct{}{}, p.client.AcknowledgeRecord(ctx, id)
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.retryDelay)),
		backoff.WithMaxTries(ackTries),
	)
	return err
}

// Discard deletes the images pulled this cycle so the next cycle downloads
// fresh copies, and removes label directories left empty. Images that were
// already on disk before the cycle are kept.
func Discard(project registry.Project, pulled *imagesync.Result) error {
	if pulled == nil {
		return nil
	}

	var errs []error
	labels := map[string]struct{}{}
	for _, img := range pulled.Images {
		labels[img.LabelNo] = struct{}{}
		if err := os.Remove(img.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, failure.Wrap(failure.KindFileSystem, err, "remove %s", img.Path))
		}
	}
	for _, b := range pulled.Batches {
		labels[b.LabelNo.String()] = struct{}{}
	}
	for label := range labels {
		if err := workspace.RemoveIfEmpty(project.Layout.LabelDir(label)); err != nil {
			errs = append(errs, err)
		}
	}

	if len(pulled.Images) > 0 {
		slog.Info("Discarded pulled images", "project", project.Name, "images", len(pulled.Images))
	}
	return errors.Join(errs...)
}
