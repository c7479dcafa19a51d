package share

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"ledgerdesk/api/internal/export"
)

// Config describes the object storage used for sharing.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix is prepended to object keys.
	Prefix string
	// Expiry bounds presigned URLs and share tokens.
	Expiry time.Duration
	// PublicBaseURL, when set with a LinkStore, yields short /s/<token> links.
	PublicBaseURL string
}

// Publisher uploads artifacts and hands back a link anyone can download from.
type Publisher struct {
	client *minio.Client
	cfg    Config
	links  *LinkStore
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewPublisher returns a Publisher, or nil when no storage is configured.
func NewPublisher(cfg Config, links *LinkStore, log logrus.FieldLogger) (*Publisher, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 24 * time.Hour
	}
	return &Publisher{client: client, cfg: cfg, links: links, log: log, now: time.Now}, nil
}

// Available reports whether the bucket is reachable right now.
func (p *Publisher) Available(ctx context.Context) bool {
	if p == nil || p.client == nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	exists, err := p.client.BucketExists(probeCtx, p.cfg.Bucket)
	if err != nil {
		p.log.WithError(err).WithField("bucket", p.cfg.Bucket).Warn("share: object storage unreachable")
		return false
	}
	return exists
}

// Share uploads file and returns a time-limited download link.
func (p *Publisher) Share(ctx context.Context, file export.ShareFile) (string, error) {
	token := NewToken()
	key := p.objectKey(token, file.Filename)

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename})
	_, err := p.client.PutObject(ctx, p.cfg.Bucket, key, bytes.NewReader(file.Data), int64(len(file.Data)), minio.PutObjectOptions{
		ContentType:        file.MimeType,
		ContentDisposition: disposition,
		UserMetadata: map[string]string{
			"title":   mime.QEncoding.Encode("utf-8", file.Title),
			"summary": mime.QEncoding.Encode("utf-8", file.Text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", file.Filename, err)
	}

	params := url.Values{}
	params.Set("response-content-disposition", disposition)
	presigned, err := p.client.PresignedGetObject(ctx, p.cfg.Bucket, key, p.cfg.Expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", file.Filename, err)
	}

	log := p.log.WithFields(logrus.Fields{"object": key, "bucket": p.cfg.Bucket})
	if p.links == nil || p.cfg.PublicBaseURL == "" {
		log.Info("share: published")
		return presigned.String(), nil
	}

	now := p.now()
	link := Link{
		URL:       presigned.String(),
		Filename:  file.Filename,
		Title:     file.Title,
		CreatedAt: now,
		ExpiresAt: now.Add(p.cfg.Expiry),
	}
	if err := p.links.Save(ctx, token, link); err != nil {
		// The presigned URL works on its own.
		log.WithError(err).Warn("share: short link not saved")
		return presigned.String(), nil
	}
	log.WithField("token", token).Info("share: published")
	return ShortURL(p.cfg.PublicBaseURL, token), nil
}

func (p *Publisher) objectKey(token, filename string) string {
	return path.Join(strings.Trim(p.cfg.Prefix, "/"), token, filename)
}

// ShortURL builds the public link for token.
func ShortURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/s/" + token
}
