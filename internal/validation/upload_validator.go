// Package validation checks uploaded and on-disk sensor exports before the
// pipeline touches them: extension, size, and basic shape.
package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "iotpulse/internal/errors"
)

// allowedExtensions are the sensor export formats the pipeline can ingest.
var allowedExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".xlsx": true,
}

// UploadValidator validates sensor exports before ingestion.
type UploadValidator struct {
	maxBytes int64
	logger   *slog.Logger
}

// NewUploadValidator creates a validator. maxBytes <= 0 disables the size
// check.
func NewUploadValidator(maxBytes int64, logger *slog.Logger) *UploadValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadValidator{maxBytes: maxBytes, logger: logger}
}

// ValidateUpload checks an in-memory upload by filename and size.
func (v *UploadValidator) ValidateUpload(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		v.logger.Warn("Upload rejected, unsupported file type",
			slog.String("filename", filename),
			slog.String("extension", ext))
		return apperrors.NewAppValidationError(
			fmt.Sprintf("unsupported file type %q, expected .csv, .txt, or .xlsx", ext))
	}

	if v.maxBytes > 0 && size > v.maxBytes {
		v.logger.Warn("Upload rejected, too large",
			slog.String("filename", filename),
			slog.Int64("size", size),
			slog.Int64("limit", v.maxBytes))
		return apperrors.NewAppValidationError(
			fmt.Sprintf("upload of %d bytes exceeds the %d byte limit", size, v.maxBytes))
	}

	if size == 0 {
		return apperrors.NewAppValidationError("upload is empty")
	}

	return nil
}

// ValidateInputFile checks an on-disk export before batch processing.
func (v *UploadValidator) ValidateInputFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return apperrors.NewAppValidationError(fmt.Sprintf("input file %s does not exist", path))
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return apperrors.NewAppValidationError(fmt.Sprintf("%s is a directory, not a file", path))
	}
	return v.ValidateUpload(path, info.Size())
}
