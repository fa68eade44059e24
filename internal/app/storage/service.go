/*
Package storage turns avatar references into URLs the presentation layer can load.

Profiles may carry either an absolute URL or an object key in the avatar bucket. Keys are
exchanged for short-lived presigned download URLs; absolute URLs pass through untouched.
*/
package storage

import (
	"context"
	"strings"
	"time"
)

// AvatarURLDuration is how long a presigned avatar URL stays valid.
const AvatarURLDuration = 15 * time.Minute

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Presigner creates download URLs for stored objects.
type Presigner interface {
	// PresignDownload generates a pre-signed URL for downloading key.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)
}

// NewPresigner returns the S3-compatible presigner for cfg.
func NewPresigner(cfg ServiceConfig) (Presigner, error) {
	return newS3Client(cfg)
}

// AvatarResolver maps avatar references to loadable URLs.
type AvatarResolver struct {
	presigner Presigner
}

// NewAvatarResolver returns a resolver; a nil presigner passes every reference through.
func NewAvatarResolver(presigner Presigner) *AvatarResolver {
	return &AvatarResolver{presigner: presigner}
}

// Resolve returns a URL for ref. On presign failure the reference is dropped and the error returned.
func (a *AvatarResolver) Resolve(ctx context.Context, ref string) (string, error) {
	if ref == "" || a == nil || a.presigner == nil || isAbsoluteURL(ref) {
		return ref, nil
	}

	url, err := a.presigner.PresignDownload(ctx, ref, AvatarURLDuration)
	if err != nil {
		return "", err
	}
	return url, nil
}

func isAbsoluteURL(ref string) bool {
	return strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://")
}
