// Package loader bulk loads the raw partition tree into the warehouse.
package loader

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blockedby/tg-warehouse/internal/logger"
	"github.com/blockedby/tg-warehouse/internal/models"
)

// MessageRow is a message record tagged with its partition date.
type MessageRow struct {
	models.MessageRecord
	PartitionDate string
}

// ParsedDate parses the record timestamp. Invalid or empty dates yield nil.
func (r MessageRow) ParsedDate() *time.Time {
	if r.MessageDate == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, r.MessageDate)
	if err != nil {
		return nil
	}
	return &t
}

// ReadPartitions reads every <base>/raw/telegram_messages/<date>/*.json document.
// Unreadable documents are logged and skipped.
func ReadPartitions(base string, log *logger.Logger) ([]MessageRow, error) {
	root := filepath.Join(base, "raw", "telegram_messages")
	files, err := filepath.Glob(filepath.Join(root, "*", "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	sort.Strings(files)

	var rows []MessageRow
	for _, path := range files {
		date := filepath.Base(filepath.Dir(path))
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			log.Warn().Str("file", path).Msg("skipping document outside a date partition")
			continue
		}
		records, err := readDocument(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping unreadable partition")
			continue
		}
		for _, rec := range records {
			rows = append(rows, MessageRow{MessageRecord: rec, PartitionDate: date})
		}
	}
	return rows, nil
}

// readDocument decodes a JSON array of records; a single object is accepted too.
func readDocument(path string) ([]models.MessageRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []models.MessageRecord
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var single models.MessageRecord
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return []models.MessageRecord{single}, nil
}

// ErrNoDetections means the enrichment output does not exist yet.
var ErrNoDetections = errors.New("detections file not found")

// ReadDetections reads the enrichment CSV. Rows whose message_id is not an
// integer are logged and skipped.
func ReadDetections(path string, log *logger.Logger) ([]models.ImageResult, error) {
	if log == nil {
		log = logger.Nop()
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoDetections
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range []string{"message_id", "channel_name", "image_path", "image_category"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %s", col)
		}
	}

	get := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var out []models.ImageResult
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		id := strings.TrimSpace(get(rec, "message_id"))
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			line, _ := r.FieldPos(0)
			log.Warn().Str("file", path).Int("line", line).Str("message_id", id).Msg("skipping detection with invalid message id")
			continue
		}

		res := models.ImageResult{
			MessageID:   id,
			ChannelName: get(rec, "channel_name"),
			ImagePath:   get(rec, "image_path"),
			Category:    models.ImageCategory(get(rec, "image_category")),
		}
		res.DetectedClasses = models.ParseClasses(get(rec, "detected_classes"))
		if s := get(rec, "confidence_score"); s != "" {
			res.ConfidenceScore, _ = strconv.ParseFloat(s, 64)
		}
		out = append(out, res)
	}
	return out, nil
}
