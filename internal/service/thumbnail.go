// Package service contains business logic for the constat application.
//
// This file implements the downscaling of photos before they are embedded in
// PDFs and emails.
package service

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// Limits for photos embedded in documents.
const (
	EmbeddedImageMaxSize     = 1600
	EmbeddedImageJPEGQuality = 85
)

// =============================================================================
// Interface Definition
// =============================================================================

// ImageProcessor prepares photos for embedding.
type ImageProcessor interface {
	// Prepare decodes data, applies its EXIF orientation, fits it within
	// maxSize x maxSize and re-encodes it as JPEG.
	Prepare(data []byte, maxSize int) ([]byte, error)
}

// =============================================================================
// Implementation
// =============================================================================

// imagingProcessor implements ImageProcessor using the imaging library.
type imagingProcessor struct{}

// NewImagingProcessor creates a new image processor using the imaging library.
func NewImagingProcessor() ImageProcessor {
	return &imagingProcessor{}
}

// Prepare downscales a photo. Images already within bounds are re-encoded
// without resizing, which also strips metadata.
func (p *imagingProcessor) Prepare(data []byte, maxSize int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxSize || bounds.Dy() > maxSize {
		img = imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(EmbeddedImageJPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
