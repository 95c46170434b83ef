package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter is the part of *s3.Client the loader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Loader reads text objects referenced as s3://bucket/key.
type S3Loader struct {
	client ObjectGetter
}

func NewS3Loader(client ObjectGetter) *S3Loader {
	return &S3Loader{client: client}
}

// ParseRef splits s3://bucket/key into bucket and key.
func ParseRef(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, "s3://")
	if !ok {
		rest, ok = strings.CutPrefix(ref, "S3://")
	}
	if !ok {
		return "", "", fmt.Errorf("not an s3 reference: %s", ref)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 reference needs a bucket and a key: %s", ref)
	}
	return bucket, key, nil
}

func (l *S3Loader) LoadText(ctx context.Context, ref string) (string, error) {
	bucket, key, err := ParseRef(ref)
	if err != nil {
		return "", err
	}

	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get object %s: %w", ref, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
