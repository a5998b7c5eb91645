package syncer

import (
	"context"
	"errors"
	"fmt"

	"tagsync/internal/model"
	"tagsync/internal/storage"

	"go.uber.org/zap"
)

var ErrNoHistory = errors.New("no history store configured")

// Restorer writes file pre-images back, refusing files changed since.
type Restorer interface {
	Restore(ctx context.Context, images []model.FileChange) error
}

// Undo restores the files of the newest recorded run that has not been
// undone yet and marks it undone.
func (s *Service) Undo(ctx context.Context, restorer Restorer) (*storage.Run, error) {
	if s.history == nil {
		return nil, ErrNoHistory
	}
	run, err := s.history.LastRun(ctx)
	if err != nil {
		return nil, err
	}
	images, err := s.history.FileImages(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if err := restorer.Restore(ctx, images); err != nil {
		return nil, fmt.Errorf("undo %s: %w", run.ID, err)
	}
	if err := s.history.MarkUndone(ctx, run.ID); err != nil {
		return nil, err
	}
	run.Images = images
	run.Undone = true
	s.logger.Info("run undone", zap.String("run", run.ID), zap.Int("files", len(images)))
	return run, nil
}
