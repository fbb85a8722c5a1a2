package models

import (
	"strconv"
	"strings"
)

// ImageCategory is the coarse label assigned to a downloaded image.
type ImageCategory string

// ImageCategory constants define the classifier output.
const (
	CategoryPromotional    ImageCategory = "promotional"
	CategoryProductDisplay ImageCategory = "product_display"
	CategoryLifestyle      ImageCategory = "lifestyle"
	CategoryOther          ImageCategory = "other"
)

// Detection is a single object found in an image.
type Detection struct {
	ClassID    int     `json:"class_id"`
	Confidence float64 `json:"confidence"`
}

// ImageResult is one row of the enrichment output.
type ImageResult struct {
	MessageID       string        `json:"message_id"`
	ChannelName     string        `json:"channel_name"`
	ImagePath       string        `json:"image_path"`
	DetectedClasses []int         `json:"detected_classes"`
	ConfidenceScore float64       `json:"confidence_score"`
	Category        ImageCategory `json:"image_category"`
}

// FormatClasses renders class ids as "[0, 39]".
func FormatClasses(classes []int) string {
	parts := make([]string, len(classes))
	for i, c := range classes {
		parts[i] = strconv.Itoa(c)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ParseClasses reads class ids written by FormatClasses. Unparsable ids are dropped.
func ParseClasses(s string) []int {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil
	}
	var out []int
	for _, p := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, n)
		}
	}
	return out
}
