// Package browse is the read-only view of the mirrored tree used by the
// document pages: root listing, folder contents, file detail, name search,
// autocomplete, the per-root catalog, and the download proxy.
package browse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/gazruxenginering/doclocker/internal/config"
	"github.com/gazruxenginering/doclocker/internal/store"
)

// ErrNotFound is returned for an unknown folder or file id.
var ErrNotFound = errors.New("browse: not found")

// Query limits.
const (
	MinQueryLength    = 2
	SearchLimit       = 50
	AutocompleteLimit = 8
)

// fallbackFolderName is shown for a folder id that is not itself mirrored
// but has mirrored children.
const fallbackFolderName = "Folder"

// Reader is the slice of the mirror store browsing needs.
// Satisfied by *store.Store.
type Reader interface {
	Node(ctx context.Context, id string) (*store.Node, error)
	ChildrenOf(ctx context.Context, parentID string) ([]store.Node, error)
	FoldersIn(ctx context.Context, parentID string) ([]store.Node, error)
	FilesIn(ctx context.Context, parentID string) ([]store.Node, error)
	HasChildren(ctx context.Context, parentID string) (bool, error)
	CountUnder(ctx context.Context, rootKey, rootID string) (int, error)
	FindByName(ctx context.Context, query string, limit int) ([]store.Node, error)
}

// Downloader streams remote file content. Satisfied by *gdrive.Client.
type Downloader interface {
	Download(ctx context.Context, fileID string) (io.ReadCloser, string, error)
}

// Item is a node with its display size and root label.
type Item struct {
	store.Node
	SizeText  string
	RootLabel string
}

// RootSummary is one configured root with its mirrored entry count.
type RootSummary struct {
	Key   string
	Label string
	ID    string
	Count int
}

// FolderView is a folder's resolved name and direct children, directories
// first.
type FolderView struct {
	ID     string
	Name   string
	IsRoot bool
	Items  []Item
}

// FileView is a file's metadata plus the directories beside it.
type FileView struct {
	Item
	Siblings []store.Node
}

// CatalogSection lists the files directly under one root.
type CatalogSection struct {
	Root  RootSummary
	Files []Item
}

// Facade answers browse queries over a Reader.
type Facade struct {
	reader     Reader
	downloader Downloader // nil disables Open
	roots      []config.Root
	logger     *slog.Logger
}

// New creates a Facade. roots are listed in the given order.
func New(reader Reader, downloader Downloader, roots []config.Root, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}

	return &Facade{
		reader:     reader,
		downloader: downloader,
		roots:      slices.Clone(roots),
		logger:     logger,
	}
}

// Roots returns every configured root in order with its entry count.
func (f *Facade) Roots(ctx context.Context) ([]RootSummary, error) {
	out := make([]RootSummary, 0, len(f.roots))

	for _, r := range f.roots {
		n, err := f.reader.CountUnder(ctx, r.Key, r.ID)
		if err != nil {
			return nil, fmt.Errorf("browse: counting root %s: %w", r.Key, err)
		}

		out = append(out, RootSummary{Key: r.Key, Label: r.DisplayName(), ID: r.ID, Count: n})
	}

	return out, nil
}

// Folder resolves the folder's display name and lists its children. The
// name is the root label for a configured root, else the mirrored
// directory's name, else a generic name when the id has mirrored children.
// Any other id is ErrNotFound.
func (f *Facade) Folder(ctx context.Context, id string) (*FolderView, error) {
	view := &FolderView{ID: id}

	name, isRoot, err := f.folderName(ctx, id)
	if err != nil {
		return nil, err
	}

	view.Name = name
	view.IsRoot = isRoot

	children, err := f.reader.ChildrenOf(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("browse: listing folder %s: %w", id, err)
	}

	view.Items = f.items(children)

	return view, nil
}

func (f *Facade) folderName(ctx context.Context, id string) (name string, isRoot bool, err error) {
	if r, ok := f.rootByID(id); ok {
		return r.DisplayName(), true, nil
	}

	n, err := f.reader.Node(ctx, id)
	switch {
	case err == nil && n.IsDir():
		return n.Name, false, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return "", false, fmt.Errorf("browse: loading folder %s: %w", id, err)
	}

	has, err := f.reader.HasChildren(ctx, id)
	if err != nil {
		return "", false, fmt.Errorf("browse: checking folder %s: %w", id, err)
	}

	if !has {
		return "", false, fmt.Errorf("%w: folder %s", ErrNotFound, id)
	}

	return fallbackFolderName, false, nil
}

// File returns a file's detail. Directory ids are ErrNotFound.
func (f *Facade) File(ctx context.Context, id string) (*FileView, error) {
	n, err := f.reader.Node(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && n.IsDir()) {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("browse: loading file %s: %w", id, err)
	}

	view := &FileView{Item: f.item(n)}

	if n.ParentID != "" {
		view.Siblings, err = f.reader.FoldersIn(ctx, n.ParentID)
		if err != nil {
			return nil, fmt.Errorf("browse: listing folders beside %s: %w", id, err)
		}
	}

	return view, nil
}

// Search returns up to SearchLimit nodes whose name contains q,
// case-insensitively. Queries shorter than MinQueryLength after trimming
// return nothing.
func (f *Facade) Search(ctx context.Context, q string) ([]Item, error) {
	return f.find(ctx, q, SearchLimit)
}

// Autocomplete is Search capped at AutocompleteLimit.
func (f *Facade) Autocomplete(ctx context.Context, q string) ([]Item, error) {
	return f.find(ctx, q, AutocompleteLimit)
}

func (f *Facade) find(ctx context.Context, q string, limit int) ([]Item, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return nil, nil
	}

	nodes, err := f.reader.FindByName(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("browse: searching %q: %w", q, err)
	}

	return f.items(nodes), nil
}

// Catalog lists, for each root in order, the files directly under it.
func (f *Facade) Catalog(ctx context.Context) ([]CatalogSection, error) {
	sections := make([]CatalogSection, 0, len(f.roots))

	for _, r := range f.roots {
		files, err := f.reader.FilesIn(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("browse: listing root %s: %w", r.Key, err)
		}

		sections = append(sections, CatalogSection{
			Root:  RootSummary{Key: r.Key, Label: r.DisplayName(), ID: r.ID},
			Files: f.items(files),
		})
	}

	return sections, nil
}

func (f *Facade) items(nodes []store.Node) []Item {
	out := make([]Item, len(nodes))
	for i := range nodes {
		out[i] = f.item(&nodes[i])
	}

	return out
}

func (f *Facade) item(n *store.Node) Item {
	return Item{Node: *n, SizeText: FormatSize(n.Size), RootLabel: f.rootLabel(n.RootKey)}
}

// rootLabel maps a root key to its label; unknown keys show as-is.
func (f *Facade) rootLabel(key string) string {
	for _, r := range f.roots {
		if r.Key == key {
			return r.DisplayName()
		}
	}

	return key
}

func (f *Facade) rootByID(id string) (config.Root, bool) {
	for _, r := range f.roots {
		if r.ID == id {
			return r, true
		}
	}

	return config.Root{}, false
}
