package main

import (
	"context"
	"fmt"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"folio/bookmark"
	"folio/content"
	"folio/css"
	"folio/layout"
	"folio/paginate"
	"folio/reader"
	"folio/render"
	"folio/state"
)

// session bundles everything commands need to lay out a book.
type session struct {
	env      *state.LocalEnv
	source   string
	book     *content.Book
	vp       layout.Viewport
	ts       *layout.Typesetter
	pg       *paginate.Paginator
	template *render.PageTemplate
	store    bookmark.Store
}

// openSession loads book named by argument arg, which may be absent, and
// prepares typesetter for configured viewport with command line overrides.
func openSession(ctx context.Context, cmd *cli.Command, arg int) (*session, error) {
	env := state.EnvFromContext(ctx)
	s := &session{env: env, source: cmd.Args().Get(arg)}

	var err error
	if len(s.source) == 0 {
		env.Log.Info("No source specified, using sample book")
		s.book, err = content.Sample()
	} else {
		s.book, err = content.Load(ctx, s.source, env.Log)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load book: %w", err)
	}

	s.vp = viewport(cmd, env)
	if s.ts, err = newTypesetter(env); err != nil {
		return nil, err
	}
	s.pg = paginate.New(s.ts, &env.Cfg.Pagination, env.Log)
	if s.template, err = render.NewPageTemplate(env.Cfg.Output.PageTemplate); err != nil {
		s.ts.Close()
		return nil, err
	}

	env.Log.Debug("Session opened", zap.String("book", s.book.Title), zap.String("source", s.book.Source),
		zap.Int("chapters", len(s.book.Chapters)), zap.Int("characters", s.book.Len()), zap.Stringer("viewport", s.vp))
	return s, nil
}

func (s *session) Close() (err error) {
	if s.store != nil {
		err = multierr.Append(err, s.store.Close())
	}
	return multierr.Append(err, s.ts.Close())
}

// newReader opens configured bookmark storage and creates reading session
// laid out for session viewport.
func (s *session) newReader(ctx context.Context) (*reader.Reader, error) {
	var err error
	if s.store, err = bookmark.Open(&s.env.Cfg.Bookmarks, s.env.Log); err != nil {
		return nil, fmt.Errorf("unable to open bookmarks: %w", err)
	}
	r, err := reader.New(ctx, s.book, s.pg, bookmark.NewSlot(s.store, s.book), s.env.Cfg.Pagination.PreviewLength, s.env.Log)
	if err != nil {
		return nil, err
	}
	if err := r.Resize(ctx, s.vp); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *session) paginate() ([]paginate.Page, error) {
	pages, err := s.pg.Book(s.book.Chapters, s.vp)
	if err != nil {
		return nil, fmt.Errorf("unable to paginate %q: %w", s.book.Title, err)
	}
	if s.env.Rpt != nil {
		s.env.Rpt.StoreData("pages.txt", []byte(dumpPages(s.book, pages)))
	}
	return pages, nil
}

func dumpPages(book *content.Book, pages []paginate.Page) string {
	var sb strings.Builder
	for _, p := range pages {
		title := "<placeholder>"
		if ch, ok := book.Chapter(p.ChapterID); ok {
			title = ch.Title
		}
		fmt.Fprintf(&sb, "%d\t%d\t%d\t%s\t%s\t%q\n", p.Number, p.Start, p.Extent, p.ID, title, p.Content.Prefix(40))
	}
	return sb.String()
}

func viewport(cmd *cli.Command, env *state.LocalEnv) layout.Viewport {
	conf := env.Cfg.Viewport
	if cmd.IsSet("width") {
		conf.Width = cmd.Float("width")
	}
	if cmd.IsSet("height") {
		conf.Height = cmd.Float("height")
	}
	return conf.Viewport()
}

func newTypesetter(env *state.LocalEnv) (*layout.Typesetter, error) {
	sheet, err := env.Cfg.Layout.Stylesheet(css.NewParser(env.Log))
	if err != nil {
		return nil, err
	}
	ts, err := layout.NewTypesetter(sheet, env.Cfg.Layout.BaseStyle(), env.Cfg.Layout.DPI, env.Log)
	if err != nil {
		return nil, fmt.Errorf("unable to prepare typesetter: %w", err)
	}
	return ts, nil
}
