package server

import (
	"github.com/google/uuid"

	"folio/layout"
	"folio/paginate"
	"folio/reader"
)

type runView struct {
	Text string   `json:"text"`
	Tags []string `json:"tags,omitempty"`
}

type pageView struct {
	ID          uuid.UUID `json:"id"`
	ChapterID   uuid.UUID `json:"chapter_id"`
	Number      int       `json:"number"`
	Start       int       `json:"start"`
	Extent      int       `json:"extent"`
	Placeholder bool      `json:"placeholder,omitempty"`
	Text        string    `json:"text"`
	Runs        []runView `json:"runs,omitempty"`
}

func newPageView(p paginate.Page, withRuns bool) pageView {
	v := pageView{
		ID:          p.ID,
		ChapterID:   p.ChapterID,
		Number:      p.Number,
		Start:       p.Start,
		Extent:      p.Extent,
		Placeholder: p.IsPlaceholder(),
		Text:        p.Content.String(),
	}
	if !withRuns {
		return v
	}
	runes := []rune(v.Text)
	for run := range p.Content.Runs() {
		rv := runView{Text: string(runes[run.Start:run.End])}
		for _, tag := range run.Tags {
			rv.Tags = append(rv.Tags, string(tag))
		}
		v.Runs = append(v.Runs, rv)
	}
	return v
}

type stateView struct {
	Version  uint64          `json:"version"`
	Viewport layout.Viewport `json:"viewport"`
	Pages    int             `json:"pages"`
	Bookmark int             `json:"bookmark"`
	Page     *pageView       `json:"page,omitempty"`
}

func newStateView(st reader.State) stateView {
	v := stateView{
		Version:  st.Version,
		Viewport: st.Viewport,
		Pages:    len(st.Pages),
		Bookmark: st.Bookmark,
	}
	if pg, ok := st.Page(); ok {
		pv := newPageView(pg, true)
		v.Page = &pv
	}
	return v
}

type viewportRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// selectionRequest selects page either by id or by number.
type selectionRequest struct {
	Page   uuid.UUID `json:"page"`
	Number int       `json:"number"`
}

type errorView struct {
	Error string `json:"error"`
}

func layoutViewport(req viewportRequest) layout.Viewport {
	return layout.Viewport{Width: req.Width, Height: req.Height}
}
