package prompts

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// Watch reloads the prompts file whenever it changes, until ctx is cancelled.
// The parent directory is watched so editors that save via rename are seen.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return errors.New("no prompts file configured")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	target := filepath.Clean(s.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}
	s.log.Info().Str("path", target).Msg("watching prompts file")

	// Editors emit bursts of events per save; coalesce them.
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, s.reloadAndLog)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

func (s *Store) reloadAndLog() {
	if err := s.Reload(); err != nil {
		s.log.Warn().Err(err).Msg("prompts reload failed, keeping previous templates")
		return
	}
	s.log.Info().Int("question_count", s.QuestionCount()).Msg("prompts reloaded")
}
