package gallery

import (
	"math"

	"imagetag/internal/dto"
)

// DetectionThreshold is the confidence a detection must exceed to be kept.
const DetectionThreshold = 0.5

// SelectDetections keeps detections above DetectionThreshold with a known label,
// one per distinct label, first occurrence in engine order.
// Class indices missing from the table are returned separately.
func SelectDetections(raw []dto.RawDetection, labels *Labels) (kept []dto.DetectionResult, unknown []int) {
	seen := make(map[string]bool)

	for _, d := range raw {
		if d.Confidence <= DetectionThreshold {
			continue
		}

		label, ok := labels.Label(d.ClassID)
		if !ok {
			unknown = append(unknown, d.ClassID)
			continue
		}
		if seen[label] {
			continue
		}
		seen[label] = true

		kept = append(kept, dto.DetectionResult{
			Label:      label,
			Confidence: d.Confidence,
			Box:        d.Box,
		})
	}

	return kept, unknown
}

// LineThickness scales box and text strokes with the image size.
// Halves round to even.
func LineThickness(width, height int) int {
	return int(math.RoundToEven(0.002*float64(max(width, height)))) + 1
}

func labelsOf(detections []dto.DetectionResult) []string {
	names := make([]string, 0, len(detections))
	for _, d := range detections {
		names = append(names, d.Label)
	}
	return names
}
