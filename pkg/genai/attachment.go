package genai

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Attachment is a file carried alongside a chat prompt, transported as a
// base64 data URI (`data:<mime>;base64,<data>`).
type Attachment struct {
	MIMEType string
	Data     []byte
}

var ErrInvalidDataURI = errors.New("invalid data URI")

const dataURIScheme = "data:"
const base64Marker = ";base64,"

// ParseDataURI decodes a `data:<mime>;base64,<data>` URI.
func ParseDataURI(uri string) (*Attachment, error) {
	if !strings.HasPrefix(uri, dataURIScheme) {
		return nil, fmt.Errorf("%w: missing data: scheme", ErrInvalidDataURI)
	}

	rest := strings.TrimPrefix(uri, dataURIScheme)

	markerIdx := strings.Index(rest, base64Marker)
	if markerIdx < 0 {
		return nil, fmt.Errorf("%w: missing base64 marker", ErrInvalidDataURI)
	}

	mimeType := rest[:markerIdx]
	if mimeType == "" {
		return nil, fmt.Errorf("%w: missing MIME type", ErrInvalidDataURI)
	}

	data, err := base64.StdEncoding.DecodeString(rest[markerIdx+len(base64Marker):])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataURI, err)
	}

	return &Attachment{MIMEType: mimeType, Data: data}, nil
}

// DataURI re-encodes the attachment for transport.
func (a *Attachment) DataURI() string {
	return dataURIScheme + a.MIMEType + base64Marker + base64.StdEncoding.EncodeToString(a.Data)
}

func (a *Attachment) IsImage() bool {
	return strings.HasPrefix(a.MIMEType, "image/")
}

// IsText covers plain text plus the structured text formats the assistant can
// inline into a prompt.
func (a *Attachment) IsText() bool {
	if strings.HasPrefix(a.MIMEType, "text/") {
		return true
	}

	switch a.MIMEType {
	case "application/json", "application/xml", "application/x-yaml":
		return true
	}

	return false
}
