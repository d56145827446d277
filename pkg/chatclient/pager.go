package chatclient

import (
	"context"
	"sync"
	"sync/atomic"

	"kelasin/chat/pkg/chatproto"
)

// MessageFetcher loads one page of class history. Page 1 is the newest.
type MessageFetcher interface {
	GetMessages(ctx context.Context, classID string, page, pageSize int, search string) (*chatproto.MessagesPage, error)
}

// Pager loads history into a Timeline: the newest page on open, then older
// pages on demand.
type Pager struct {
	fetcher  MessageFetcher
	timeline *Timeline
	notifier Notifier
	pageSize int

	// loadingMore allows a single load-more request in flight
	loadingMore atomic.Bool

	mu      sync.Mutex
	classID string
	search  string
	page    int
	hasMore bool
	gen     uint64 // bumped on every reload; older responses are dropped
}

// NewPager creates a pager filling timeline. pageSize <= 0 uses the default
// of 20.
func NewPager(fetcher MessageFetcher, timeline *Timeline, notifier Notifier, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = chatproto.DefaultPageSize
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Pager{
		fetcher:  fetcher,
		timeline: timeline,
		notifier: notifier,
		pageSize: pageSize,
	}
}

// SetClass points the pager at another class and drops any response still
// in flight for the previous one.
func (p *Pager) SetClass(classID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.classID = classID
	p.search = ""
	p.page = 0
	p.hasMore = false
	p.gen++
}

// LoadInitial fetches the newest page and replaces the timeline with it.
func (p *Pager) LoadInitial(ctx context.Context) error {
	p.mu.Lock()
	p.gen++
	gen, classID, search := p.gen, p.classID, p.search
	p.mu.Unlock()

	if classID == "" {
		return ErrNoClass
	}

	result, err := p.fetcher.GetMessages(ctx, classID, 1, p.pageSize, search)
	if err != nil {
		if p.current(gen) {
			p.notifier.Notify(errorToast("Failed to load messages", err))
		}
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return nil
	}
	p.timeline.Reset(result.Messages)
	p.page = 1
	p.hasMore = result.Meta.HasNextPage
	return nil
}

// LoadMore fetches the next older page and prepends it. It reports whether
// a page was added. While another LoadMore is in flight, or when the server
// reported no further page, it does nothing.
func (p *Pager) LoadMore(ctx context.Context) (bool, error) {
	if !p.HasMore() {
		return false, nil
	}
	if !p.loadingMore.CompareAndSwap(false, true) {
		return false, nil
	}
	defer p.loadingMore.Store(false)

	p.mu.Lock()
	gen, classID, search, next := p.gen, p.classID, p.search, p.page+1
	p.mu.Unlock()

	result, err := p.fetcher.GetMessages(ctx, classID, next, p.pageSize, search)
	if err != nil {
		if p.current(gen) {
			p.notifier.Notify(errorToast("Failed to load more messages", err))
		}
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return false, nil
	}
	p.timeline.Prepend(result.Messages)
	p.page = next
	p.hasMore = result.Meta.HasNextPage
	return true, nil
}

// Search reloads the first page filtered by term. An empty term clears the
// filter.
func (p *Pager) Search(ctx context.Context, term string) error {
	p.mu.Lock()
	p.search = term
	p.mu.Unlock()

	return p.LoadInitial(ctx)
}

// HasMore reports whether the server has an older page.
func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.hasMore
}

// Loading reports whether a LoadMore is in flight.
func (p *Pager) Loading() bool {
	return p.loadingMore.Load()
}

// Page returns the number of pages loaded.
func (p *Pager) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.page
}

func (p *Pager) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return gen == p.gen
}
