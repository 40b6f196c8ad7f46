package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
)

// ErrObjectNotFound is returned when a path does not resolve to an object.
var ErrObjectNotFound = errors.New("storage: object not found")

// Object is a downloaded blob.
type Object struct {
	Path        string
	ContentType string
	Data        []byte
}

// UploadRequest describes a blob to persist.
type UploadRequest struct {
	Data        []byte
	Filename    string
	Category    enums.AssetCategory
	OwnerID     string
	ContentType string
}

// Store is the object store surface the agreement workflow depends on.
type Store interface {
	Upload(ctx context.Context, req UploadRequest) (string, error)
	Download(ctx context.Context, objectPath string) (*Object, error)
	Delete(ctx context.Context, objectPath string) error
	SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ObjectPath builds category/owner/<uuid>-<filename>. A fresh uuid is used for
// every upload so replacements never overwrite the object they replace.
func ObjectPath(category enums.AssetCategory, ownerID, filename string) (string, error) {
	if strings.TrimSpace(string(category)) == "" {
		return "", fmt.Errorf("category is required")
	}
	owner := strings.TrimSpace(ownerID)
	if owner == "" {
		return "", fmt.Errorf("owner id is required")
	}
	name := SanitizeFilename(filename)
	return path.Join(string(category), owner, uuid.NewString()+"-"+name), nil
}

// SanitizeFilename keeps object keys URL safe.
func SanitizeFilename(filename string) string {
	base := path.Base(strings.TrimSpace(filename))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	clean := unsafeFilenameChars.ReplaceAllString(base, "_")
	clean = strings.Trim(clean, "_")
	if clean == "" {
		return "file"
	}
	return clean
}
