package listing

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	DefaultPageSize = 10
	SearchDebounce  = 500 * time.Millisecond
)

// Region is a UI area whose content is fully replaced on every render.
type Region interface {
	Replace(markup string)
}

// RegionFunc adapts a plain function to Region.
type RegionFunc func(markup string)

func (f RegionFunc) Replace(markup string) { f(markup) }

// Timer is the part of *time.Timer the controller needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it through a wrapper.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Direction string

const (
	Next Direction = "next"
	Prev Direction = "prev"
)

type Config[T any] struct {
	// Container receives rows and placeholders. Required.
	Container Region
	// Toolbar receives the search/date controls once; optional.
	Toolbar Region
	// Pagination receives the pager; optional.
	Pagination Region

	Fetch  FetchFunc[T]
	Render RenderFunc[T]

	PageSize  int
	Debounce  time.Duration
	AfterFunc AfterFunc
	Logger    *slog.Logger
}

// Controller binds a data source and a row renderer to a paginated region
// with debounced search and a single-day date filter.
type Controller[T any] struct {
	ctx context.Context
	cfg Config[T]

	mu          sync.Mutex
	currentPage int
	totalItems  int
	searchQuery string
	dateFilter  string

	timerMu       sync.Mutex
	debounceTimer Timer
	closed        bool
}

// New builds a controller, renders its toolbar and performs the first load.
// ctx scopes every fetch; cancel it (or call Close) when the view goes away.
func New[T any](ctx context.Context, cfg Config[T]) (*Controller[T], error) {
	if cfg.Container == nil {
		return nil, errors.New("listing: container region is required")
	}
	if cfg.Fetch == nil || cfg.Render == nil {
		return nil, errors.New("listing: fetch and render callbacks are required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = SearchDebounce
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = realAfterFunc
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Controller[T]{
		ctx:         ctx,
		cfg:         cfg,
		currentPage: 1,
	}
	c.renderControls()
	c.Load()
	return c, nil
}

func (c *Controller[T]) renderControls() {
	if c.cfg.Toolbar == nil {
		return
	}
	c.cfg.Toolbar.Replace(toolbarMarkup)
}

// HandleSearch records a keystroke. The fetch happens once input has been
// quiet for the debounce window.
func (c *Controller[T]) HandleSearch(value string) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()

	if c.closed {
		return
	}
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.debounceTimer = c.cfg.AfterFunc(c.cfg.Debounce, func() {
		c.mu.Lock()
		c.searchQuery = strings.TrimSpace(value)
		c.currentPage = 1
		c.mu.Unlock()
		c.Load()
	})
}

// HandleDate applies a date filter immediately; "" clears it.
func (c *Controller[T]) HandleDate(value string) {
	c.mu.Lock()
	c.dateFilter = strings.TrimSpace(value)
	c.currentPage = 1
	c.mu.Unlock()
	c.Load()
}

// HandlePage moves one page in the given direction when allowed and reloads.
func (c *Controller[T]) HandlePage(d Direction) {
	c.mu.Lock()
	switch {
	case d == Next && c.currentPage*c.cfg.PageSize < c.totalItems:
		c.currentPage++
	case d == Prev && c.currentPage > 1:
		c.currentPage--
	}
	c.mu.Unlock()
	c.Load()
}

// Load fetches the current page and replaces the rendered rows.
func (c *Controller[T]) Load() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg.Container.Replace(loadingMarkup)
	if c.cfg.Pagination != nil {
		c.cfg.Pagination.Replace(updatingMarkup)
	}

	res, err := c.fetchLocked()
	if err != nil {
		c.cfg.Logger.Warn("list fetch failed", slog.String("err", err.Error()))
		c.cfg.Container.Replace(errorMarkup(err))
		c.renderPaginationLocked()
		return
	}

	c.totalItems = res.Count
	if c.totalItems == 0 {
		c.currentPage = 1
	} else if (c.currentPage-1)*c.cfg.PageSize >= c.totalItems {
		// Rows vanished underneath us; fall back to the last page that exists.
		c.currentPage = TotalPages(c.totalItems, c.cfg.PageSize)
		res, err = c.fetchLocked()
		if err != nil {
			c.cfg.Container.Replace(errorMarkup(err))
			c.renderPaginationLocked()
			return
		}
		c.totalItems = res.Count
	}

	if c.totalItems == 0 || len(res.Data) == 0 {
		c.cfg.Container.Replace(emptyMarkup)
	} else {
		var b strings.Builder
		for _, item := range res.Data {
			b.WriteString(c.cfg.Render(item))
		}
		c.cfg.Container.Replace(b.String())
	}

	c.renderPaginationLocked()
}

func (c *Controller[T]) fetchLocked() (Result[T], error) {
	from := (c.currentPage - 1) * c.cfg.PageSize
	return c.cfg.Fetch(c.ctx, Query{
		From:   from,
		To:     from + c.cfg.PageSize - 1,
		Search: c.searchQuery,
		Date:   c.dateFilter,
	})
}

func (c *Controller[T]) renderPaginationLocked() {
	if c.cfg.Pagination == nil {
		return
	}
	st := c.stateLocked()
	c.cfg.Pagination.Replace(paginationMarkup(st))
}

// State returns a snapshot of the controller's counters.
func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller[T]) stateLocked() State {
	size := c.cfg.PageSize
	st := State{
		Page:       c.currentPage,
		PageSize:   size,
		TotalItems: c.totalItems,
		TotalPages: TotalPages(c.totalItems, size),
		Search:     c.searchQuery,
		Date:       c.dateFilter,
		HasPrev:    c.currentPage > 1,
		HasNext:    c.currentPage*size < c.totalItems,
	}
	if c.totalItems > 0 {
		st.StartItem = (c.currentPage-1)*size + 1
		st.EndItem = min(c.currentPage*size, c.totalItems)
	}
	return st
}

// Close cancels a pending debounced search.
func (c *Controller[T]) Close() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	c.closed = true
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
}

type State struct {
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalItems int    `json:"total_items"`
	TotalPages int    `json:"total_pages"`
	StartItem  int    `json:"start_item"`
	EndItem    int    `json:"end_item"`
	Search     string `json:"search"`
	Date       string `json:"date"`
	HasPrev    bool   `json:"has_prev"`
	HasNext    bool   `json:"has_next"`
}

const (
	toolbarMarkup = `<div class="search-group"><input type="text" class="search-input" placeholder="Search..." data-action="search"></div>` +
		`<div class="date-group"><input type="date" class="date-input" data-action="date"></div>`
	loadingMarkup  = `<div class="list-placeholder list-loading">Loading data...</div>`
	updatingMarkup = `<span>Updating...</span>`
	emptyMarkup    = `<div class="list-placeholder list-empty">No results found.</div>`
)

func errorMarkup(err error) string {
	return fmt.Sprintf(`<div class="list-placeholder list-error" style="color:red;">Error: %s</div>`,
		html.EscapeString(err.Error()))
}

func paginationMarkup(st State) string {
	prev, next := "", ""
	if !st.HasPrev {
		prev = " disabled"
	}
	if !st.HasNext {
		next = " disabled"
	}
	return fmt.Sprintf(`<div class="pagination-info">Showing <strong>%d-%d</strong> of <strong>%d</strong></div>`+
		`<div class="pagination-controls">`+
		`<button class="btn-page" data-action="prev"%s>Previous</button>`+
		`<button class="btn-page" disabled>Page %d</button>`+
		`<button class="btn-page" data-action="next"%s>Next</button>`+
		`</div>`, st.StartItem, st.EndItem, st.TotalItems, prev, st.Page, next)
}
