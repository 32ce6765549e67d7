package history

import (
	"context"

	"github.com/charmbracelet/log"
	internalmetrics "github.com/chirino/chat-history/internal/metrics"
	"github.com/chirino/chat-history/internal/model"
)

// NextPageIndexToLoad returns the index of the next older page to pull into
// the record's page cache. Pages load downwards from the highest index; a
// negative result means every page is loaded or the next one is missing.
func NextPageIndexToLoad(record *model.ConversationRecord) int {
	next := record.Locator.Highest() - record.PagesLoaded
	if next < 0 {
		return -1
	}
	if _, ok := record.Locator.Lookup(next); !ok {
		return -1
	}
	return next
}

// NumberOfChatPages returns the highest page index of the record, or -1
// when it has no pages.
func NumberOfChatPages(record *model.ConversationRecord) int {
	return record.Locator.Highest()
}

// LoadNextPage reads the next older page into record. Loaded pages are kept
// newest first, so the page lands after the ones already cached. It reports
// false, leaving the record unchanged, when there is nothing left to load.
func (s *PageStore) LoadNextPage(ctx context.Context, record *model.ConversationRecord) (bool, error) {
	index := NextPageIndexToLoad(record)
	if index < 0 {
		if gap := record.Locator.Highest() - record.PagesLoaded; gap >= 0 {
			log.Debug("Page index missing; end of history", "conversation", record.ID, "index", gap)
		}
		return false, nil
	}
	name, _ := record.Locator.Lookup(index)
	page, err := s.ReadPage(ctx, record.ID, name)
	if err != nil {
		return false, err
	}
	record.LoadedPages = append(record.LoadedPages, page)
	record.PagesLoaded++
	internalmetrics.Inc(internalmetrics.PagesLoadedTotal)
	return true, nil
}

// Unload drops the session state of record. The locator is kept until the
// next initialization replaces it.
func Unload(record *model.ConversationRecord) {
	record.PagesLoaded = 0
	record.LoadedPages = nil
}
