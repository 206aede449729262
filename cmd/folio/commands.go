package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"folio/content"
	"folio/layout"
	"folio/paginate"
	"folio/state"
	"folio/toc"
)

func runPaginate(ctx context.Context, cmd *cli.Command) (err error) {
	s, err := openSession(ctx, cmd, 0)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, s.Close()) }()

	pages, err := s.paginate()
	if err != nil {
		return err
	}
	out := cmd.Root().Writer
	if err := s.template.Pages(out, s.book, pages); err != nil {
		return err
	}

	st := paginate.Summarize(s.book.Chapters, pages)
	s.env.Log.Info("Book paginated", zap.String("book", s.book.Title), zap.Stringer("viewport", s.vp),
		zap.Int("pages", st.Pages), zap.Int("characters", st.Characters), zap.Int("not shown", st.Dropped()))

	if !cmd.IsSet("bookmark") {
		return nil
	}
	offset := cmd.Int("bookmark")
	if id, ok := paginate.Resolve(pages, offset); ok {
		i, _ := paginate.Locate(pages, id)
		fmt.Fprintf(out, "bookmark %d is shown on page %d (offset %d)\n", offset, pages[i].Number, pages[i].Start)
	} else {
		fmt.Fprintf(out, "bookmark %d is past the last page, page 1 is shown\n", offset)
	}
	return nil
}

func runTOC(ctx context.Context, cmd *cli.Command) (err error) {
	s, err := openSession(ctx, cmd, 0)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, s.Close()) }()

	pages, err := s.paginate()
	if err != nil {
		return err
	}
	entries := toc.Build(s.book.Chapters, pages, s.env.Cfg.Pagination.PreviewLength)

	out := cmd.Root().Writer
	if cmd.Bool("yaml") {
		data, err := yaml.Marshal(entries)
		if err != nil {
			return fmt.Errorf("unable to encode chapter menu: %w", err)
		}
		_, err = out.Write(data)
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTITLE\tPAGE\tPAGES\tPREVIEW")
	for i, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%q\n", i+1, e.Title, e.PageNumber, e.Pages, e.Preview)
	}
	return tw.Flush()
}

func runResolve(ctx context.Context, cmd *cli.Command) (err error) {
	if cmd.Args().Len() == 0 {
		return errors.New("bookmark offset is required")
	}
	offset, err := strconv.Atoi(cmd.Args().First())
	if err != nil || offset < 0 {
		return fmt.Errorf("bad bookmark offset %q", cmd.Args().First())
	}

	s, err := openSession(ctx, cmd, 1)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, s.Close()) }()

	pages, err := s.paginate()
	if err != nil {
		return err
	}
	id, ok := paginate.Resolve(pages, offset)
	if !ok {
		s.env.Log.Warn("Bookmark is past the last page, first page would be shown", zap.Int("offset", offset), zap.Int("pages", len(pages)))
		id = pages[0].ID
	}
	i, _ := paginate.Locate(pages, id)
	return s.template.Page(cmd.Root().Writer, s.book, pages, i, true)
}

func parseSize(s string) (layout.Viewport, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return layout.Viewport{}, fmt.Errorf("bad size %q, expected WIDTHxHEIGHT", s)
	}
	width, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return layout.Viewport{}, fmt.Errorf("bad size %q: %w", s, err)
	}
	height, err := strconv.ParseFloat(h, 64)
	if err != nil {
		return layout.Viewport{}, fmt.Errorf("bad size %q: %w", s, err)
	}
	return layout.Viewport{Width: width, Height: height}, nil
}

func runVerify(ctx context.Context, cmd *cli.Command) (err error) {
	s, err := openSession(ctx, cmd, 0)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, s.Close()) }()

	env := state.EnvFromContext(ctx)
	out := cmd.Root().Writer

	var failed error
	for _, size := range cmd.StringSlice("size") {
		if err := ctx.Err(); err != nil {
			return err
		}
		box, err := parseSize(size)
		if err != nil {
			return err
		}
		vpConf := env.Cfg.Viewport
		vpConf.Width, vpConf.Height = box.Width, box.Height
		s.vp = vpConf.Viewport()

		pages, err := s.paginate()
		if err == nil {
			err = verifyPages(s.book.Chapters, pages)
		}
		st := paginate.Summarize(s.book.Chapters, pages)
		if err != nil {
			fmt.Fprintf(out, "FAIL %s: %v\n", size, err)
			failed = multierr.Append(failed, fmt.Errorf("%s: %w", size, err))
			continue
		}
		fmt.Fprintf(out, "ok   %s: %d pages, %d-%d characters per page\n", size, st.Pages, st.MinExtent, st.MaxExtent)
	}
	if failed != nil {
		return fmt.Errorf("pagination check failed: %w", failed)
	}
	return nil
}

// verifyPages checks pagination result and stability of bookmark resolution.
func verifyPages(chapters []content.Chapter, pages []paginate.Page) error {
	err := paginate.Coverage(chapters, pages)
	for _, p := range pages {
		if id, ok := paginate.Resolve(pages, p.Start); !ok || id != p.ID {
			err = multierr.Append(err, fmt.Errorf("offset %d does not resolve to page %d", p.Start, p.Number))
		}
	}
	return err
}
