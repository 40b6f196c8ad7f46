package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/angelmondragon/ledgerly-backend/pkg/config"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
	objectstore "github.com/angelmondragon/ledgerly-backend/pkg/storage"
)

const (
	pingTimeout     = 5 * time.Second
	uploadTimeout   = 2 * time.Minute
	downloadTimeout = time.Minute
	deleteTimeout   = 30 * time.Second
)

// Client is the GCS-backed object store.
type Client struct {
	client *storage.Client
	bucket string
	signer *signer
	logg   *logger.Logger
}

// signer holds service account material for offline V4 URL signing. When nil
// the SDK signs through the IAM credentials API.
type signer struct {
	accessID   string
	privateKey []byte
}

type serviceAccountJSON struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ objectstore.Store = (*Client)(nil)

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	opts, creds, err := clientOptions(cfg, gcp)
	if err != nil {
		return nil, err
	}

	sc, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	client := &Client{
		client: sc,
		bucket: cfg.BucketName,
		logg:   logg,
	}
	if creds != nil && creds.ClientEmail != "" && creds.PrivateKey != "" {
		client.signer = &signer{accessID: creds.ClientEmail, privateKey: []byte(creds.PrivateKey)}
	} else if cfg.SignerEmail != "" {
		client.signer = &signer{accessID: cfg.SignerEmail}
	}

	if err := client.Ping(ctx); err != nil {
		_ = sc.Close()
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client initialized")
	}
	return client, nil
}

func clientOptions(cfg config.GCSConfig, gcp config.GCPConfig) ([]option.ClientOption, *serviceAccountJSON, error) {
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(host, "/"))
		return []option.ClientOption{option.WithoutAuthentication()}, nil, nil
	}

	var raw []byte
	switch {
	case gcp.CredentialsJSON != "":
		raw = []byte(gcp.CredentialsJSON)
	case gcp.ApplicationCredentials != "":
		b, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, nil, fmt.Errorf("reading credentials file: %w", err)
		}
		raw = b
	default:
		return []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}, nil, nil
	}

	var creds serviceAccountJSON
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, nil, fmt.Errorf("parsing service account json: %w", err)
	}
	return []option.ClientOption{
		option.WithCredentialsJSON(raw),
		option.WithScopes(storage.ScopeReadWrite),
	}, &creds, nil
}

// Upload writes the blob under a fresh, owner-scoped path and returns that path.
func (c *Client) Upload(ctx context.Context, req objectstore.UploadRequest) (string, error) {
	objectPath, err := objectstore.ObjectPath(req.Category, req.OwnerID, req.Filename)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := c.client.Bucket(c.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = req.ContentType
	if _, err := io.Copy(w, bytes.NewReader(req.Data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing object %q: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing object writer %q: %w", objectPath, err)
	}
	return objectPath, nil
}

func (c *Client) Download(ctx context.Context, objectPath string) (*objectstore.Object, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	r, err := c.client.Bucket(c.bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, objectstore.ErrObjectNotFound
		}
		return nil, fmt.Errorf("opening object %q: %w", objectPath, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", objectPath, err)
	}
	return &objectstore.Object{
		Path:        objectPath,
		ContentType: r.Attrs.ContentType,
		Data:        data,
	}, nil
}

// Delete removes the object. A missing object is reported as ErrObjectNotFound.
func (c *Client) Delete(ctx context.Context, objectPath string) error {
	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	if err := c.client.Bucket(c.bucket).Object(objectPath).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return objectstore.ErrObjectNotFound
		}
		return fmt.Errorf("deleting object %q in bucket %q: %w", objectPath, c.bucket, err)
	}
	return nil
}

// SignedURL returns a V4 GET URL valid for ttl.
func (c *Client) SignedURL(_ context.Context, objectPath string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("signed url ttl must be positive")
	}
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	}
	if c.signer != nil {
		opts.GoogleAccessID = c.signer.accessID
		opts.PrivateKey = c.signer.privateKey
	}
	if c.client == nil {
		return storage.SignedURL(c.bucket, objectPath, opts)
	}
	return c.client.Bucket(c.bucket).SignedURL(objectPath, opts)
}

// Ping lists at most one object to verify bucket access.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("gcs client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	it := c.client.Bucket(c.bucket).Objects(ctx, &storage.Query{})
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
