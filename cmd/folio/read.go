package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"folio/content"
	"folio/paginate"
	"folio/reader"
	"folio/server"
)

// settle is how long source must stay unchanged before it is reloaded,
// editors tend to produce bursts of events on save.
const settle = 300 * time.Millisecond

func printSelected(w io.Writer, s *session, st reader.State) error {
	i, ok := paginate.Locate(st.Pages, st.Selected)
	if !ok {
		return fmt.Errorf("page %s: %w", st.Selected, reader.ErrUnknownPage)
	}
	return s.template.Page(w, st.Book, st.Pages, i, true)
}

func runRead(ctx context.Context, cmd *cli.Command) (err error) {
	s, err := openSession(ctx, cmd, 0)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, s.Close()) }()

	r, err := s.newReader(ctx)
	if err != nil {
		return err
	}

	switch {
	case cmd.IsSet("select"):
		err = r.SelectNumber(ctx, int(cmd.Int("select")))
	case cmd.IsSet("chapter"):
		n, entries := cmd.Int("chapter"), r.Chapters()
		if n < 1 || n > len(entries) {
			return fmt.Errorf("chapter %d of %d: %w", n, len(entries), reader.ErrUnknownChapter)
		}
		err = r.JumpToChapter(ctx, entries[n-1].ChapterID)
	case cmd.Bool("next"):
		var ok bool
		if ok, err = r.Next(ctx); err == nil && !ok {
			s.env.Log.Info("Already at the last page")
		}
	case cmd.Bool("prev"):
		var ok bool
		if ok, err = r.Prev(ctx); err == nil && !ok {
			s.env.Log.Info("Already at the first page")
		}
	}
	if err != nil {
		return err
	}

	st := r.State()
	s.env.Log.Debug("Reading position", zap.Int("bookmark", st.Bookmark), zap.Uint64("version", st.Version))
	return printSelected(cmd.Root().Writer, s, st)
}

func runServe(ctx context.Context, cmd *cli.Command) (err error) {
	s, err := openSession(ctx, cmd, 0)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, s.Close()) }()

	r, err := s.newReader(ctx)
	if err != nil {
		return err
	}
	addr := s.env.Cfg.Server.Listen
	if cmd.IsSet("listen") {
		addr = cmd.String("listen")
	}
	return server.New(r, s.env.Log).ListenAndServe(ctx, addr)
}

func runWatch(ctx context.Context, cmd *cli.Command) (err error) {
	if cmd.Args().Len() == 0 {
		return errors.New("book source to watch is required")
	}
	s, err := openSession(ctx, cmd, 0)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, s.Close()) }()

	r, err := s.newReader(ctx)
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	if err := printSelected(out, s, r.State()); err != nil {
		return err
	}
	cancel := r.Subscribe(func(st reader.State) {
		if err := printSelected(out, s, st); err != nil {
			s.env.Log.Warn("Unable to print page", zap.Error(err))
		}
	})
	defer cancel()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(s.source)
	if err != nil {
		return err
	}
	fi, err := os.Stat(target)
	if err != nil {
		return err
	}
	// watch parent directory of a file, saving often replaces it
	dir := target
	if !fi.IsDir() {
		dir = filepath.Dir(target)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("unable to watch %q: %w", dir, err)
	}
	s.env.Log.Info("Watching book source", zap.String("path", target))

	relevant := func(ev fsnotify.Event) bool {
		if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
			return false
		}
		if fi.IsDir() {
			return filepath.Ext(ev.Name) == ".txt"
		}
		return filepath.Clean(ev.Name) == target
	}

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.env.Log.Info("Stopped watching", zap.String("path", target))
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if relevant(ev) {
				s.env.Log.Debug("Source changed", zap.Stringer("event", ev))
				timer.Reset(settle)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.env.Log.Warn("Watcher error", zap.Error(werr))
		case <-timer.C:
			book, err := content.Load(ctx, s.source, s.env.Log)
			if err != nil {
				// keep showing what we have, next save may fix it
				s.env.Log.Warn("Unable to reload book", zap.Error(err))
				continue
			}
			if err := r.Reload(ctx, book); err != nil {
				s.env.Log.Warn("Unable to lay out reloaded book", zap.Error(err))
			}
		}
	}
}
