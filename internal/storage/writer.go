// Package storage writes the raw partition tree on disk.
//
// Layout under the base path:
//
//	raw/telegram_messages/<date>/<channel>.json
//	raw/manifests/<date>/manifest.json
//	raw/images/<channel>/<message_id>.jpg
//	processed/yolo_results.csv
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/blockedby/tg-warehouse/internal/models"
)

// OutputWriteError is a failed write of a message document or manifest.
type OutputWriteError struct {
	Path string
	Err  error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *OutputWriteError) Unwrap() error {
	return e.Err
}

// Writer writes partitions under a base path.
// It is not safe for concurrent writers to the same document.
type Writer struct {
	base string
	now  func() time.Time
}

// NewWriter creates a writer rooted at base.
func NewWriter(base string) *Writer {
	return &Writer{base: base, now: time.Now}
}

// WithClock overrides the manifest timestamp source.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

// Base returns the base path.
func (w *Writer) Base() string {
	return w.base
}

// MessagesPath returns the document path of a (date, channel) partition.
func (w *Writer) MessagesPath(date, channel string) string {
	return filepath.Join(w.base, "raw", "telegram_messages", date, channel+".json")
}

// ManifestPath returns the manifest path of a date.
func (w *Writer) ManifestPath(date string) string {
	return ManifestPath(w.base, date)
}

// ManifestPath returns the manifest path of a date under base.
func ManifestPath(base, date string) string {
	return filepath.Join(base, "raw", "manifests", date, "manifest.json")
}

// ImagesRoot returns the directory holding one image directory per channel.
func ImagesRoot(base string) string {
	return filepath.Join(base, "raw", "images")
}

// DetectionsPath returns the enrichment output path under base.
func DetectionsPath(base string) string {
	return filepath.Join(base, "processed", "yolo_results.csv")
}

// ImageDir creates the image directory of channel and returns it.
func (w *Writer) ImageDir(channel string) (string, error) {
	dir := filepath.Join(ImagesRoot(w.base), channel)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &OutputWriteError{Path: dir, Err: err}
	}
	return dir, nil
}

// WriteChannelMessages appends records to the partition document.
// Existing content that does not parse as a JSON array is discarded.
// Records are appended as is, without deduplication.
func (w *Writer) WriteChannelMessages(date, channel string, records []models.MessageRecord) error {
	path := w.MessagesPath(date, channel)

	merged := readExisting(path)
	for _, rec := range records {
		raw, err := marshal(rec, "")
		if err != nil {
			return &OutputWriteError{Path: path, Err: err}
		}
		merged = append(merged, json.RawMessage(bytes.TrimRight(raw, "\n")))
	}
	if merged == nil {
		merged = []json.RawMessage{}
	}

	data, err := marshal(merged, "  ")
	if err != nil {
		return &OutputWriteError{Path: path, Err: err}
	}
	if err := writeAtomic(path, data); err != nil {
		return &OutputWriteError{Path: path, Err: err}
	}
	return nil
}

// WriteManifest overwrites the manifest of date with counts.
func (w *Writer) WriteManifest(date string, counts map[string]int) (*models.Manifest, error) {
	if counts == nil {
		counts = map[string]int{}
	}
	m := &models.Manifest{
		Date:            date,
		ChannelsScraped: counts,
		Timestamp:       w.now().Format(time.RFC3339Nano),
	}

	path := w.ManifestPath(date)
	data, err := marshal(m, "  ")
	if err != nil {
		return nil, &OutputWriteError{Path: path, Err: err}
	}
	if err := writeAtomic(path, data); err != nil {
		return nil, &OutputWriteError{Path: path, Err: err}
	}
	return m, nil
}

// ErrManifestNotFound means the run for a date is incomplete or never ran.
var ErrManifestNotFound = errors.New("manifest not found")

// ReadManifest reads the manifest of date under base.
func ReadManifest(base, date string) (*models.Manifest, error) {
	data, err := os.ReadFile(ManifestPath(base, date))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrManifestNotFound
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	if err := writeAtomic(path, data); err != nil {
		return &OutputWriteError{Path: path, Err: err}
	}
	return nil
}

func readExisting(path string) []json.RawMessage {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var existing []json.RawMessage
	if err := json.Unmarshal(data, &existing); err != nil {
		return nil
	}
	return existing
}

// marshal encodes v keeping non-ASCII and HTML characters literal.
func marshal(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeAtomic writes data to a temp file next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
