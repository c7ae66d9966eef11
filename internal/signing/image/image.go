// Package image validates submitted signature images before any side effect
// runs. A rejected image short-circuits the signing request with itemized
// validation errors and leaves no state behind.
package image

import (
	"bytes"
	"encoding/base64"
	"strings"

	dErrors "countersign/pkg/domain-errors"
)

// MaxDecodedBytes caps the decoded image size. Signature strokes rendered to
// PNG sit well under this; anything larger is not a signature pad capture.
const MaxDecodedBytes = 2 << 20

var (
	pngMagic   = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegMagic  = []byte{0xff, 0xd8, 0xff}
	dataPrefix = "data:"
)

// Image is a validated signature image ready for storage.
type Image struct {
	Data        []byte
	ContentType string
}

// Validate decodes and checks an encoded signature image. Accepts a data URL
// ("data:image/png;base64,...") or bare base64. Returns an itemized
// validation error when the input is unusable.
func Validate(encoded string) (*Image, error) {
	fields := map[string]string{}

	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		fields["signature_image"] = "signature image is required"
		return nil, dErrors.NewValidation("invalid signature image", fields)
	}

	payload := encoded
	if strings.HasPrefix(encoded, dataPrefix) {
		comma := strings.IndexByte(encoded, ',')
		if comma < 0 {
			fields["signature_image"] = "malformed data URL"
			return nil, dErrors.NewValidation("invalid signature image", fields)
		}
		header := encoded[len(dataPrefix):comma]
		if !strings.HasSuffix(header, ";base64") {
			fields["signature_image"] = "data URL must be base64 encoded"
			return nil, dErrors.NewValidation("invalid signature image", fields)
		}
		payload = encoded[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		fields["signature_image"] = "invalid base64 encoding"
		return nil, dErrors.NewValidation("invalid signature image", fields)
	}

	if len(data) == 0 {
		fields["signature_image"] = "signature image is empty"
	}
	if len(data) > MaxDecodedBytes {
		fields["signature_image"] = "signature image exceeds the size limit"
	}
	if len(fields) > 0 {
		return nil, dErrors.NewValidation("invalid signature image", fields)
	}

	contentType := sniff(data)
	if contentType == "" {
		fields["signature_image"] = "signature image must be PNG or JPEG"
		return nil, dErrors.NewValidation("invalid signature image", fields)
	}

	return &Image{Data: data, ContentType: contentType}, nil
}

func sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return "image/png"
	case bytes.HasPrefix(data, jpegMagic):
		return "image/jpeg"
	default:
		return ""
	}
}
