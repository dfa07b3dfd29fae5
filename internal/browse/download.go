package browse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gazruxenginering/doclocker/internal/metrics"
)

// ErrNoDownloader is returned by Open when the facade has no remote client.
var ErrNoDownloader = errors.New("browse: downloads are not configured")

// defaultContentType is used when the remote reports none.
const defaultContentType = "application/octet-stream"

// Download is an open remote file stream.
type Download struct {
	File        *FileView
	ContentType string
	Body        io.ReadCloser // counts bytes; Close records the transfer
}

// Open streams a mirrored file's content from the remote. Only ids present
// in the mirror as files can be opened.
func (f *Facade) Open(ctx context.Context, id string) (*Download, error) {
	if f.downloader == nil {
		return nil, ErrNoDownloader
	}

	view, err := f.File(ctx, id)
	if err != nil {
		return nil, err
	}

	body, contentType, err := f.downloader.Download(ctx, id)
	if err != nil {
		metrics.RecordDownload(0, false)
		return nil, fmt.Errorf("browse: downloading %s: %w", id, err)
	}

	if contentType == "" {
		contentType = defaultContentType
	}

	f.logger.Info("download started",
		slog.String("file_id", id),
		slog.String("name", view.Name),
		slog.String("content_type", contentType),
	)

	return &Download{
		File:        view,
		ContentType: contentType,
		Body:        &countingBody{ReadCloser: body},
	}, nil
}

// countingBody records the bytes read when closed. A read error other than
// EOF marks the transfer failed.
type countingBody struct {
	io.ReadCloser
	n      int64
	failed bool
	closed bool
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)

	if err != nil && !errors.Is(err, io.EOF) {
		b.failed = true
	}

	return n, err
}

func (b *countingBody) Close() error {
	if !b.closed {
		b.closed = true
		metrics.RecordDownload(b.n, !b.failed)
	}

	return b.ReadCloser.Close()
}
