// Package imagesync pulls a project's unconsumed labeled images into its workspace.
package imagesync

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/labelhub/autotrain/internal/failure"
	"github.com/labelhub/autotrain/internal/registry"
	"github.com/labelhub/autotrain/internal/upstream"
	"github.com/labelhub/autotrain/internal/workspace"
)

const (
	// DefaultRetryDelay is the pause before the single retry of a failed download
	DefaultRetryDelay = time.Second

	// downloadTries is the first attempt plus one retry
	downloadTries = 2
)

// ConsumedImage is one image written to the workspace this cycle.
type ConsumedImage struct {
	RecordID upstream.ID
	LabelNo  string
	Name     string
	Path     string
}

// Result records what a sync pulled. It is returned even when the sync fails
// part way so the caller can discard the partial pull.
type Result struct {
	Batches []upstream.Batch
	Images  []ConsumedImage
}

// HasNewImages reports whether the server had any unconsumed batch for the project.
func (r *Result) HasNewImages() bool {
	return r != nil && len(r.Batches) > 0
}

// RecordIDs returns the batch records to acknowledge after a successful publish.
func (r *Result) RecordIDs() []upstream.ID {
	if r == nil {
		return nil
	}
	ids := make([]upstream.ID, 0, len(r.Batches))
	for _, b := range r.Batches {
		ids = append(ids, b.ID)
	}
	return ids
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithRetryDelay sets the pause before a download is retried.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Synchronizer) {
		s.retryDelay = d
	}
}

// Synchronizer downloads images for one project at a time.
type Synchronizer struct {
	client     upstream.Client
	retryDelay time.Duration
}

// New creates a Synchronizer.
func New(client upstream.Client, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		client:     client,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync pulls every unconsumed batch of p. Each image is fetched at most twice;
// a second failure aborts the project's sync with a download error.
func (s *Synchronizer) Sync(ctx context.Context, p registry.Project) (*Result, error) {
	result := &Result{}

	batches, err := s.client.ListUnconsumedBatches(ctx, p.ID)
	if err != nil {
		return result, err
	}
	result.Batches = batches

	for _, batch := range batches {
		label := batch.LabelNo.String()
		if err := workspace.CheckName(label); err != nil {
			return result, failure.Wrap(failure.KindUpstream, err, "unusable label number in batch %s", batch.ID)
		}
		if err := os.MkdirAll(p.Layout.LabelDir(label), 0o755); err != nil {
			return result, failure.Wrap(failure.KindFileSystem, err, "create label directory %s", label)
		}

		names, err := s.client.ListImageNames(ctx, batch.ProjectID, batch.LabelNo)
		if err != nil {
			return result, err
		}

		for _, name := range names {
			if err := workspace.CheckName(name); err != nil {
				return result, failure.Wrap(failure.KindUpstream, err, "unusable image name in label %s", label)
			}

			data, err := s.fetch(ctx, batch, name)
			if err != nil {
				return result, err
			}

			path := p.Layout.RawImage(label, name)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return result, failure.Wrap(failure.KindFileSystem, err, "write image %s", path)
			}
			result.Images = append(result.Images, ConsumedImage{
				RecordID: batch.ID,
				LabelNo:  label,
				Name:     name,
				Path:     path,
			})
		}
	}

	slog.Info("Synchronized images",
		"project", p.Name,
		"batches", len(result.Batches),
		"images", len(result.Images),
	)
	return result, nil
}

func (s *Synchronizer) fetch(ctx context.Context, batch upstream.Batch, name string) ([]byte, error) {
	op := func() ([]byte, error) {
		return s.client.FetchImage(ctx, batch.ProjectID, batch.LabelNo, name)
	}
	notify := func(err error, next time.Duration) {
		slog.Warn("Image download failed, retrying",
			"label", batch.LabelNo,
			"image", name,
			"retry_in", next,
			"error", err,
		)
	}

	data, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(s.retryDelay)),
		backoff.WithMaxTries(downloadTries),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return nil, failure.Wrap(failure.KindDownload, err,
			"download label %s image %s failed after retry", batch.LabelNo, name)
	}
	return data, nil
}
