package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// FolderMimeType marks Drive folders.
const FolderMimeType = "application/vnd.google-apps.folder"

// MaxPageSize is the largest page Drive returns for files.list.
const MaxPageSize = 1000

// listFields restricts files.list responses to what the mirror stores.
const listFields googleapi.Field = "nextPageToken, files(id, name, mimeType, modifiedTime, parents, size)"

// Entry is one child reported by ListChildren.
type Entry struct {
	ID           string
	Name         string
	MimeType     string
	ModifiedTime string
	Parents      []string
	Size         int64 // 0 when Drive reports none (folders, native docs)
}

// IsFolder reports whether the entry is a Drive folder.
func (e *Entry) IsFolder() bool {
	return e.MimeType == FolderMimeType
}

// Page is one page of a folder listing. NextPageToken is empty on the last
// page.
type Page struct {
	Entries       []Entry
	NextPageToken string
}

// Client is a read-only Drive v3 client.
type Client struct {
	svc      *drive.Service
	pageSize int64
	logger   *slog.Logger
}

// New wraps an existing Drive service. pageSize outside 1..MaxPageSize is
// clamped to MaxPageSize.
func New(svc *drive.Service, pageSize int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	return &Client{
		svc:      svc,
		pageSize: int64(pageSize),
		logger:   logger,
	}
}

// NewFromServiceAccount builds a Client authenticated as the service account
// described by credentialsJSON, with the drive.readonly scope.
func NewFromServiceAccount(
	ctx context.Context, credentialsJSON []byte, pageSize int, logger *slog.Logger,
) (*Client, error) {
	cfg, err := google.JWTConfigFromJSON(credentialsJSON, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("gdrive: parsing service account credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("gdrive: creating drive service: %w", err)
	}

	return New(svc, pageSize, logger), nil
}

// ErrNoCredentials is returned by LoadCredentials when neither inline JSON
// nor a credentials file is available.
var ErrNoCredentials = errors.New("gdrive: no service account credentials configured")

// LoadCredentials returns the service account JSON. Inline JSON (from the
// environment) wins over the credentials file.
func LoadCredentials(inline, path string) ([]byte, error) {
	if strings.TrimSpace(inline) != "" {
		return []byte(inline), nil
	}

	if path == "" {
		return nil, ErrNoCredentials
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", ErrNoCredentials, path)
	}

	if err != nil {
		return nil, fmt.Errorf("gdrive: reading credentials %s: %w", path, err)
	}

	return data, nil
}

// ListChildren returns one page of the non-trashed children of folderID.
// Pass the previous page's NextPageToken to continue; "" starts over.
func (c *Client) ListChildren(ctx context.Context, folderID, pageToken string) (Page, error) {
	call := c.svc.Files.List().
		Q(childrenQuery(folderID)).
		PageSize(c.pageSize).
		Fields(listFields).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx)

	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return Page{}, wrapError("listing "+folderID, err)
	}

	page := Page{
		Entries:       make([]Entry, 0, len(resp.Files)),
		NextPageToken: resp.NextPageToken,
	}

	for _, f := range resp.Files {
		page.Entries = append(page.Entries, Entry{
			ID:           f.Id,
			Name:         f.Name,
			MimeType:     f.MimeType,
			ModifiedTime: f.ModifiedTime,
			Parents:      f.Parents,
			Size:         f.Size,
		})
	}

	c.logger.Debug("listed folder page",
		slog.String("folder_id", folderID),
		slog.Int("entries", len(page.Entries)),
		slog.Bool("more", page.NextPageToken != ""),
	)

	return page, nil
}

// Download streams the content of fileID. The caller must close the
// returned reader. contentType is Drive's reported Content-Type.
func (c *Client) Download(ctx context.Context, fileID string) (body io.ReadCloser, contentType string, err error) {
	resp, err := c.svc.Files.Get(fileID).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, "", wrapError("downloading "+fileID, err)
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// childrenQuery builds the files.list query for the direct, non-trashed
// children of folderID.
func childrenQuery(folderID string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(folderID)

	return "'" + escaped + "' in parents and trashed = false"
}
