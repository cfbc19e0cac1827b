package blob

import (
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/civicwater/waterboard/pkg/engine"
	"github.com/civicwater/waterboard/pkg/schema"
)

// SanitizeName replaces every rune outside [A-Za-z0-9.] with '_'.
// Directory components of the client-supplied name are dropped first.
func SanitizeName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	// A name made only of dots would resolve to a directory.
	if strings.Trim(out, ".") == "" {
		return "file"
	}
	return out
}

// AttachmentName builds the stored name {reference}_{index}_{epochMillis}_{sanitized}.
func AttachmentName(reference string, index int, now time.Time, original string) string {
	return fmt.Sprintf("%s_%d_%d_%s", reference, index, now.UnixMilli(), SanitizeName(original))
}

// SaveAttachments writes each uploaded file to store and returns the metadata
// to keep on the record. Files already written are removed if a later one fails.
func SaveAttachments(ctx context.Context, store Store, reference string, files []*multipart.FileHeader, now time.Time) ([]schema.Attachment, error) {
	out := make([]schema.Attachment, 0, len(files))
	var written []string

	rollback := func() {
		for _, key := range written {
			_, _ = store.Delete(ctx, key)
		}
	}

	for i, fh := range files {
		name := AttachmentName(reference, i, now, fh.Filename)
		contentType := fh.Header.Get("Content-Type")

		f, err := fh.Open()
		if err != nil {
			rollback()
			return nil, fmt.Errorf("open upload %q: %w", fh.Filename, err)
		}
		info, err := store.Put(ctx, name, f, PutOptions{ContentType: contentType})
		_ = f.Close()
		if err != nil {
			rollback()
			return nil, fmt.Errorf("store upload %q: %w", fh.Filename, err)
		}
		written = append(written, name)

		out = append(out, schema.Attachment{
			OriginalName: fh.Filename,
			StoredName:   name,
			Size:         info.Size,
			MimeType:     contentType,
			UploadedAt:   now.UTC().Format(engine.TimestampLayout),
		})
	}
	return out, nil
}

// Remove deletes the blobs behind attachments, ignoring missing ones.
func Remove(ctx context.Context, store Store, attachments []schema.Attachment) error {
	var firstErr error
	for _, a := range attachments {
		if _, err := store.Delete(ctx, a.StoredName); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
