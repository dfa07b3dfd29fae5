package mirror

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gazruxenginering/doclocker/internal/gdrive"
	"github.com/gazruxenginering/doclocker/internal/store"
)

// maxPagesPerFolder caps one folder's pagination loop.
const maxPagesPerFolder = 10000

// folderCursor is a worklist frame: a folder being listed, with the
// unprocessed rest of its current page and the token for the next one.
type folderCursor struct {
	id      string
	depth   int // 0 for a root
	entries []gdrive.Entry
	next    string
	pages   int
}

// exhausted reports whether every page has been fetched and consumed.
func (f *folderCursor) exhausted() bool {
	return len(f.entries) == 0 && f.pages > 0 && f.next == ""
}

// crawler walks the remote tree for one run. Entries are kept in discovery
// order; the first occurrence of an id wins.
type crawler struct {
	lister   TreeLister
	maxDepth int // 0 = unbounded
	logger   *slog.Logger

	visited    []store.Node
	seen       map[string]struct{}
	enqueued   map[string]struct{}
	duplicates int
}

func newCrawler(lister TreeLister, maxDepth int, logger *slog.Logger) *crawler {
	return &crawler{
		lister:   lister,
		maxDepth: maxDepth,
		logger:   logger,
		seen:     make(map[string]struct{}),
		enqueued: make(map[string]struct{}),
	}
}

// crawlRoot lists root and everything beneath it in depth-first pre-order:
// a subfolder's subtree is walked as soon as the subfolder is listed, before
// its later siblings and before the parent's next page. A folder already
// enqueued earlier in the run (through this or a previous root) is not
// listed again, so cycles terminate.
func (c *crawler) crawlRoot(ctx context.Context, root Root) error {
	c.enqueued[root.ID] = struct{}{}
	stack := []*folderCursor{{id: root.ID}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if top.exhausted() {
			stack = stack[:len(stack)-1]
			continue
		}

		if len(top.entries) == 0 {
			if err := c.fetchPage(ctx, top); err != nil {
				return err
			}

			continue
		}

		entry := top.entries[0]
		top.entries = top.entries[1:]

		if !c.record(&entry, root.Key, top.id) || !entry.IsFolder() {
			continue
		}

		if _, ok := c.enqueued[entry.ID]; ok {
			continue
		}

		depth := top.depth + 1
		if c.maxDepth > 0 && depth > c.maxDepth {
			return fmt.Errorf("%w: folder %s under root %s is at depth %d (max %d)",
				ErrDepthExceeded, entry.ID, root.Key, depth, c.maxDepth)
		}

		c.enqueued[entry.ID] = struct{}{}
		stack = append(stack, &folderCursor{id: entry.ID, depth: depth})
	}

	return nil
}

// fetchPage loads the folder's next page into the cursor.
func (c *crawler) fetchPage(ctx context.Context, f *folderCursor) error {
	if f.pages >= maxPagesPerFolder {
		return fmt.Errorf("%w: folder %s", ErrTooManyPages, f.id)
	}

	page, err := c.lister.ListChildren(ctx, f.id, f.next)
	if err != nil {
		return fmt.Errorf("mirror: listing folder %s: %w", f.id, err)
	}

	f.pages++
	f.entries = page.Entries
	f.next = page.NextPageToken

	return nil
}

// record adds entry to the visited set. It returns false for a duplicate id,
// which is counted and logged but otherwise ignored.
func (c *crawler) record(entry *gdrive.Entry, rootKey, listedFolderID string) bool {
	if _, dup := c.seen[entry.ID]; dup {
		c.duplicates++
		c.logger.Warn("duplicate remote entry ignored",
			slog.String("id", entry.ID),
			slog.String("name", entry.Name),
			slog.String("root", rootKey),
			slog.String("listed_folder", listedFolderID),
		)

		return false
	}

	c.seen[entry.ID] = struct{}{}

	parentID := listedFolderID
	if len(entry.Parents) > 0 {
		parentID = entry.Parents[0]
	}

	kind := store.KindFile
	if entry.IsFolder() {
		kind = store.KindDirectory
	}

	c.visited = append(c.visited, store.Node{
		ID:           entry.ID,
		Name:         entry.Name,
		Kind:         kind,
		Size:         entry.Size,
		ModifiedTime: entry.ModifiedTime,
		ParentID:     parentID,
		RootKey:      rootKey,
		MediaType:    entry.MimeType,
	})

	return true
}
