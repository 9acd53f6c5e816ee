package realtime

import (
	"sync"

	"github.com/cooperativa/registro/internal/schema"
)

// Feed delivers payload-free change notifications per table. store.Store
// and RemoteFeed both satisfy it.
type Feed interface {
	SubscribeChanges(table schema.Table, callback func()) (unsubscribe func())
}

// Subscribe listens to every table in tables and calls callback whenever
// one of them changes. Notifications are not merged: three tables changing
// together fire callback up to three times, so callers should treat it as
// a request to refetch.
//
// The returned function removes all the subscriptions. Calling it more
// than once is harmless.
func Subscribe(feed Feed, tables []schema.Table, callback func()) (unsubscribe func()) {
	return subscribeEach(feed, tables, func(schema.Table) { callback() })
}

// subscribeEach is Subscribe with the changed table passed to the callback.
func subscribeEach(feed Feed, tables []schema.Table, callback func(schema.Table)) func() {
	unsubs := make([]func(), 0, len(tables))
	for _, t := range tables {
		table := t
		unsubs = append(unsubs, feed.SubscribeChanges(table, func() { callback(table) }))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, unsub := range unsubs {
				unsub()
			}
		})
	}
}

// Notifier binds Subscribe to one feed.
type Notifier struct {
	feed Feed
}

// NewNotifier creates a Notifier over feed.
func NewNotifier(feed Feed) *Notifier {
	return &Notifier{feed: feed}
}

// Subscribe is the package-level Subscribe over the bound feed. With no
// tables it listens to all nine data tables.
func (n *Notifier) Subscribe(callback func(), tables ...schema.Table) (unsubscribe func()) {
	if len(tables) == 0 {
		tables = schema.Tables()
	}
	return Subscribe(n.feed, tables, callback)
}
