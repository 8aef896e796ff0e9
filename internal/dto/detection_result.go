package dto

import "image"

// RawDetection is one row of inference output before thresholding.
type RawDetection struct {
	ClassID    int
	Confidence float64
	Box        image.Rectangle
}

// Inference is the result of one forward pass over an image.
type Inference struct {
	Width      int
	Height     int
	Detections []RawDetection
}

// DetectionResult is a kept detection with its resolved label.
type DetectionResult struct {
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"-"`
}
