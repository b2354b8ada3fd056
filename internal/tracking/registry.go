package tracking

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vincentbai/pagetrace/internal/analytics"
	"github.com/vincentbai/pagetrace/internal/errors"
	"github.com/vincentbai/pagetrace/internal/models"
	"github.com/vincentbai/pagetrace/internal/tab"
)

// Page is a live tab and the session tracking it.
type Page struct {
	Tab     *tab.Tab
	Session *Session
}

// SinkFactory returns the sink for a newly opened tab.
type SinkFactory func(tabID string) *analytics.Sink

// Registry holds the live pages of every connected browser tab. It is safe
// for concurrent use; each page serialises its own work on its tab loop.
type Registry struct {
	mu    sync.Mutex
	pages map[string]*Page

	sched   tab.Scheduler
	newSink SinkFactory
	opts    Options
	logger  zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(sched tab.Scheduler, newSink SinkFactory, opts Options, logger zerolog.Logger) *Registry {
	return &Registry{
		pages:   make(map[string]*Page),
		sched:   sched,
		newSink: newSink,
		opts:    opts,
		logger:  logger,
	}
}

// Open creates a tab for id and starts tracking it. A page already open
// under id is closed first, as after a reload.
func (r *Registry) Open(id string, opts tab.Options) *Page {
	logger := r.logger.With().Str("tab_id", id).Logger()
	t := tab.New(id, opts, r.sched, logger)
	page := &Page{
		Tab:     t,
		Session: NewSession(t.Window(), r.newSink(id), r.opts, logger),
	}

	r.mu.Lock()
	old := r.pages[id]
	r.pages[id] = page
	r.mu.Unlock()
	if old != nil {
		old.Tab.Close()
	}

	t.Do(page.Session.Start)
	return page
}

// Get returns the page open under id.
func (r *Registry) Get(id string) (*Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page, ok := r.pages[id]
	if !ok {
		return nil, errors.NewTabError(id, errors.ErrUnknownTab)
	}
	return page, nil
}

// Close stops the page open under id.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	page, ok := r.pages[id]
	delete(r.pages, id)
	r.mu.Unlock()
	if !ok {
		return errors.NewTabError(id, errors.ErrUnknownTab)
	}
	page.Tab.Close()
	return nil
}

// Len returns the number of open pages.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}

// IDs returns the open tab ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.pages))
	for id := range r.pages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll stops every page.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	pages := r.pages
	r.pages = make(map[string]*Page)
	r.mu.Unlock()
	for _, page := range pages {
		page.Tab.Close()
	}
}

// Handle routes one signal: load opens a page, unload delivers the signal
// and closes the page, action is reported by the session, and everything
// else is applied to the tab.
func (r *Registry) Handle(signal models.Signal) error {
	switch signal.Type {
	case models.SignalLoad:
		opts, err := tab.OptionsFromLoad(signal)
		if err != nil {
			return err
		}
		r.Open(signal.TabID, opts)
		return nil

	case models.SignalAction:
		page, err := r.Get(signal.TabID)
		if err != nil {
			return err
		}
		action, err := ParseAction(signal.Data)
		if err != nil {
			return err
		}
		page.Tab.Do(func() { err = page.Session.HandleAction(action) })
		return err

	case models.SignalUnload:
		page, err := r.Get(signal.TabID)
		if err != nil {
			return err
		}
		if err := page.Tab.Apply(signal); err != nil {
			return fmt.Errorf("unload tab %s: %w", signal.TabID, err)
		}
		return r.Close(signal.TabID)

	default:
		page, err := r.Get(signal.TabID)
		if err != nil {
			return err
		}
		return page.Tab.Apply(signal)
	}
}
