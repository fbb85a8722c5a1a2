package enrichment

import (
	"slices"

	"github.com/blockedby/tg-warehouse/internal/models"
)

// COCO class ids used by the classifier.
const (
	ClassPerson = 0
	ClassBottle = 39
	ClassCup    = 41
	ClassBowl   = 45
)

var productClasses = []int{ClassBottle, ClassCup, ClassBowl}

// Classify labels an image from its detections and returns the sorted
// unique class ids with the highest confidence seen.
func Classify(dets []models.Detection) (models.ImageCategory, []int, float64) {
	var (
		hasPerson  bool
		hasProduct bool
		classes    []int
		maxConf    float64
	)

	for _, d := range dets {
		if d.ClassID == ClassPerson {
			hasPerson = true
		}
		if slices.Contains(productClasses, d.ClassID) {
			hasProduct = true
		}
		if !slices.Contains(classes, d.ClassID) {
			classes = append(classes, d.ClassID)
		}
		if d.Confidence > maxConf {
			maxConf = d.Confidence
		}
	}
	slices.Sort(classes)

	switch {
	case hasPerson && hasProduct:
		return models.CategoryPromotional, classes, maxConf
	case hasProduct:
		return models.CategoryProductDisplay, classes, maxConf
	case hasPerson:
		return models.CategoryLifestyle, classes, maxConf
	default:
		return models.CategoryOther, classes, maxConf
	}
}
