// ABOUTME: Image attachment handling for the draft input buffer.
// ABOUTME: Validates, sniffs, and inline-encodes a single pending image.

package attach

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"
)

// Validation errors returned by FromFile and FromBytes.
var (
	ErrTooLarge        = errors.New("attachment exceeds size limit")
	ErrUnsupportedType = errors.New("unsupported attachment type")
	ErrEmpty           = errors.New("attachment is empty")
)

// Limits bounds what may be attached to a draft.
type Limits struct {
	MaxBytes     int64
	AllowedTypes []string
}

// DefaultLimits returns the documented recommendation: 5 MB, JPEG or PNG.
func DefaultLimits() Limits {
	return Limits{
		MaxBytes:     5 << 20,
		AllowedTypes: []string{"image/jpeg", "image/png"},
	}
}

func (l Limits) allows(mime string) bool {
	for _, t := range l.AllowedTypes {
		if t == mime {
			return true
		}
	}
	return false
}

// Attachment is the single pending image of a draft, held simultaneously
// as raw bytes (for submission) and as metadata for preview display.
type Attachment struct {
	Filename string
	MIME     string
	Data     []byte
	Width    int
	Height   int
}

// FromFile reads and validates an image file.
func FromFile(path string, limits Limits) (*Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	return FromBytes(filepath.Base(path), data, limits)
}

// FromBytes validates raw image bytes. The content type is sniffed from
// the payload, not trusted from the filename.
func FromBytes(filename string, data []byte, limits Limits) (*Attachment, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if limits.MaxBytes > 0 && int64(len(data)) > limits.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(data), limits.MaxBytes)
	}

	mime := http.DetectContentType(data)
	if !limits.allows(mime) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
	}

	a := &Attachment{
		Filename: filename,
		MIME:     mime,
		Data:     data,
	}

	// Dimensions are preview metadata only; a payload that sniffs as an
	// image but fails header decoding still attaches.
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		a.Width = cfg.Width
		a.Height = cfg.Height
	}

	return a, nil
}

// DataURL returns the inline-encoded form used both for preview labeling
// and for the image field of the outgoing request.
func (a *Attachment) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", a.MIME, base64.StdEncoding.EncodeToString(a.Data))
}

// Preview returns a short human-readable description for display.
func (a *Attachment) Preview() string {
	if a.Width > 0 && a.Height > 0 {
		return fmt.Sprintf("%s (%s, %dx%d, %s)", a.Filename, a.MIME, a.Width, a.Height, formatBytes(len(a.Data)))
	}
	return fmt.Sprintf("%s (%s, %s)", a.Filename, a.MIME, formatBytes(len(a.Data)))
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
