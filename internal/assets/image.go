package assets

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	pkgerrors "github.com/angelmondragon/ledgerly-backend/pkg/errors"
	"github.com/angelmondragon/ledgerly-backend/pkg/security"
)

// DefaultMaxSignatureBytes caps decoded signature images.
const DefaultMaxSignatureBytes = 2 << 20

var signatureExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

// Image is a decoded, sniffed signature image ready for upload.
type Image struct {
	Data        []byte
	ContentType string
	Extension   string
	SHA256      string
}

// Filename names the object after the signer role.
func (i *Image) Filename(prefix string) string {
	return prefix + i.Extension
}

// DecodeSignatureImage accepts raw base64 or a data URL and returns the
// decoded bytes. Only PNG and JPEG content is accepted, judged by the bytes
// rather than the declared media type.
func DecodeSignatureImage(raw string, maxBytes int) (*Image, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxSignatureBytes
	}
	encoded := strings.TrimSpace(raw)
	if encoded == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signature image is required")
	}
	if strings.HasPrefix(encoded, "data:") {
		header, body, ok := strings.Cut(encoded, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "signature image must be base64 encoded")
		}
		encoded = body
	}
	if base64.StdEncoding.DecodedLen(len(encoded)) > maxBytes+3 {
		return nil, tooLarge(maxBytes)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "signature image is not valid base64")
		}
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signature image is empty")
	}
	if len(data) > maxBytes {
		return nil, tooLarge(maxBytes)
	}

	detected := mimetype.Detect(data)
	for contentType, ext := range signatureExtensions {
		if detected.Is(contentType) {
			return &Image{
				Data:        data,
				ContentType: contentType,
				Extension:   ext,
				SHA256:      security.SHA256Hex(data),
			}, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "signature image must be a PNG or JPEG").
		WithDetails(map[string]any{"detected": detected.String()})
}

func tooLarge(maxBytes int) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("signature image exceeds %d bytes", maxBytes))
}
