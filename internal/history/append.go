package history

import (
	"context"

	"github.com/charmbracelet/log"
	internalmetrics "github.com/chirino/chat-history/internal/metrics"
	"github.com/chirino/chat-history/internal/model"
)

// AppendResult describes where an appended message went.
type AppendResult struct {
	// NewPage is true when the message started a new page.
	NewPage bool
	// PageIndex is the index of the page that now holds the message.
	PageIndex int
}

// AppendEngine adds messages to the newest page of a conversation, rolling
// over to a new page once the newest one is full.
type AppendEngine struct {
	pages      *PageStore
	maxPerPage int
}

// NewAppendEngine returns an engine writing through pages. maxPerPage values
// below one are treated as one.
func NewAppendEngine(pages *PageStore, maxPerPage int) *AppendEngine {
	if maxPerPage < 1 {
		maxPerPage = 1
	}
	return &AppendEngine{pages: pages, maxPerPage: maxPerPage}
}

// MaxPerPage returns the page capacity.
func (e *AppendEngine) MaxPerPage() int {
	return e.maxPerPage
}

// Append persists msg to the newest page of record. The record is only
// updated once the page write succeeded; on error it is left as it was.
func (e *AppendEngine) Append(ctx context.Context, record *model.ConversationRecord, msg model.Message) (AppendResult, error) {
	if record.Locator == nil {
		record.Locator = model.PageLocator{}
	}
	if len(record.LoadedPages) == 0 && record.Locator.Count() > 0 {
		return AppendResult{}, &NotInitializedError{ConversationID: record.ID}
	}

	newPage := len(record.LoadedPages) == 0 || record.LoadedPages[0].Len() >= e.maxPerPage
	var page *model.Page
	if newPage {
		page = &model.Page{}
	} else {
		page = record.LoadedPages[0].Clone()
	}
	page.Chats = append(page.Chats, msg)

	// A new page always goes above the highest known index, even when the
	// stored sequence has gaps below it.
	index := NumberOfChatPages(record)
	if newPage {
		index++
	}

	if err := e.pages.WritePage(ctx, record.ID, index, page); err != nil {
		return AppendResult{}, err
	}

	if newPage {
		record.Locator.Add(index, PageName(record.ID, index))
		record.LoadedPages = append([]*model.Page{page}, record.LoadedPages...)
		// The new page is in the cache, so it counts as loaded.
		record.PagesLoaded++
		internalmetrics.Inc(internalmetrics.PagesCreatedTotal)
		log.Debug("Started new page", "conversation", record.ID, "index", index)
	} else {
		record.LoadedPages[0] = page
	}
	internalmetrics.Inc(internalmetrics.MessagesAppendedTotal)
	return AppendResult{NewPage: newPage, PageIndex: index}, nil
}
