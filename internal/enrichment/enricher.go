package enrichment

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/blockedby/tg-warehouse/internal/logger"
	"github.com/blockedby/tg-warehouse/internal/models"
	"github.com/blockedby/tg-warehouse/internal/storage"
)

// ProgressEvery is the number of images between progress log lines.
const ProgressEvery = 10

var csvHeader = []string{
	"message_id", "channel_name", "image_path", "detected_classes", "confidence_score", "image_category",
}

// Summary describes an enrichment run.
type Summary struct {
	Processed  int
	Failed     int
	OutputPath string
}

// Enricher classifies every downloaded image under a base path.
type Enricher struct {
	detector Detector
	log      *logger.Logger
}

// New creates an enricher.
func New(detector Detector, log *logger.Logger) *Enricher {
	if log == nil {
		log = logger.Nop()
	}
	return &Enricher{detector: detector, log: log}
}

// Run detects objects in <base>/raw/images/<channel>/*.jpg and writes the
// results CSV. Images that fail detection are logged and skipped. No file is
// written when nothing was processed.
func (e *Enricher) Run(ctx context.Context, base string) (*Summary, error) {
	images, err := listImages(storage.ImagesRoot(base))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			e.log.Warn().Str("dir", storage.ImagesRoot(base)).Msg("images directory not found")
			return &Summary{}, nil
		}
		return nil, err
	}

	summary := &Summary{}
	var results []models.ImageResult
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		dets, err := e.detector.Detect(ctx, img.path)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Failed++
			e.log.Error().Err(err).Str("image", img.path).Msg("detection failed")
			continue
		}

		category, classes, conf := Classify(dets)
		results = append(results, models.ImageResult{
			MessageID:       img.messageID,
			ChannelName:     img.channel,
			ImagePath:       img.path,
			DetectedClasses: classes,
			ConfidenceScore: conf,
			Category:        category,
		})

		summary.Processed++
		if summary.Processed%ProgressEvery == 0 {
			e.log.Info().Int("processed", summary.Processed).Msg("enrichment progress")
		}
	}

	if len(results) == 0 {
		e.log.Info().Msg("no images processed")
		return summary, nil
	}

	summary.OutputPath = storage.DetectionsPath(base)
	if err := WriteResults(summary.OutputPath, results); err != nil {
		return summary, err
	}

	e.log.Info().
		Int("processed", summary.Processed).
		Int("failed", summary.Failed).
		Str("path", summary.OutputPath).
		Msg("enrichment complete")
	return summary, nil
}

// WriteResults replaces the CSV at path with results.
func WriteResults(path string, results []models.ImageResult) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.MessageID,
			r.ChannelName,
			r.ImagePath,
			models.FormatClasses(r.DetectedClasses),
			strconv.FormatFloat(r.ConfidenceScore, 'f', -1, 64),
			string(r.Category),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return storage.WriteFile(path, buf.Bytes())
}

type image struct {
	channel   string
	messageID string
	path      string
}

// listImages returns every <root>/<channel>/*.jpg ordered by channel and file name.
func listImages(root string) ([]image, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var out []image
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		files, err := filepath.Glob(filepath.Join(root, entry.Name(), "*.jpg"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		for _, f := range files {
			out = append(out, image{
				channel:   entry.Name(),
				messageID: strings.TrimSuffix(filepath.Base(f), ".jpg"),
				path:      f,
			})
		}
	}
	return out, nil
}
