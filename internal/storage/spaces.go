// Package storage stores chat uploads in DigitalOcean Spaces through the S3
// compatible minio client.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"chatflow/api/internal/config"
)

const (
	DefaultPresignTTL = 15 * time.Minute
	maxFileNameLength = 120
)

var ErrDisabled = errors.New("object storage not configured")

type Object struct {
	Key         string
	Size        int64
	ContentType string
	PublicURL   string
	ETag        string
}

type Spaces struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

func NewSpaces(cfg config.SpacesConfig) (*Spaces, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.Key, cfg.Secret, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupDNS,
	})
	if err != nil {
		return nil, fmt.Errorf("create spaces client: %w", err)
	}

	publicBase := cfg.CDNEndpoint
	if publicBase == "" {
		scheme := "https"
		if !cfg.UseSSL {
			scheme = "http"
		}
		publicBase = scheme + "://" + cfg.Bucket + "." + cfg.Endpoint
	}
	return &Spaces{client: client, bucket: cfg.Bucket, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

func (s *Spaces) Bucket() string {
	return s.bucket
}

// Put uploads the object with a public-read ACL so CDN links work without
// signing.
func (s *Spaces) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (Object, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
		UserMetadata: map[string]string{"x-amz-acl": "public-read"},
	})
	if err != nil {
		return Object{}, fmt.Errorf("put object %s: %w", key, err)
	}
	return Object{
		Key:         key,
		Size:        info.Size,
		ContentType: contentType,
		PublicURL:   s.PublicURL(key),
		ETag:        info.ETag,
	}, nil
}

func (s *Spaces) PresignGet(ctx context.Context, key, fileName string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	params := url.Values{}
	if fileName != "" {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", SanitizeFileName(fileName)))
	}
	signed, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", key, err)
	}
	return signed.String(), nil
}

func (s *Spaces) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// Check reports whether the configured bucket is reachable with the
// configured credentials.
func (s *Spaces) Check(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

func (s *Spaces) PublicURL(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return s.publicBase + "/" + strings.Join(segments, "/")
}

// ObjectKey namespaces uploads by workspace and channel.
func ObjectKey(workspaceID, channelID, uploadID, fileName string) string {
	return path.Join("workspaces", workspaceID, "channels", channelID, uploadID+"-"+SanitizeFileName(fileName))
}

// SanitizeFileName keeps letters, digits, dot, dash and underscore from the
// base name and replaces everything else with a dash.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))

	var b strings.Builder
	lastDash := false
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '_':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	clean := strings.Trim(b.String(), "-.")
	if clean == "" {
		return "file"
	}
	if len(clean) > maxFileNameLength {
		ext := path.Ext(clean)
		if len(ext) > 16 {
			ext = ""
		}
		clean = clean[:maxFileNameLength-len(ext)] + ext
	}
	return clean
}
