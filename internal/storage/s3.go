// Package storage archives finished graph snapshots in S3 compatible object
// storage and hands out presigned download links for them.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cognify-labs/cognify/backend/internal/util"
	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const linkExpiry = 15 * time.Minute

// NewS3Client builds a client from the AWS_* environment. It returns nil
// when no bucket is configured, which disables archiving.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	if util.GetEnvString("AWS_BUCKET", "") == "" {
		return nil, nil
	}

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(util.GetEnvString("AWS_REGION", "us-east-1")),
		config.WithBaseEndpoint(util.GetEnv("AWS_ENDPOINT")),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			util.GetEnv("AWS_ACCESS_KEY"),
			util.GetEnv("AWS_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

// SnapshotArchive keeps one JSON document per finished graph.
type SnapshotArchive struct {
	client         *s3.Client
	bucket         string
	publicEndpoint string
}

type NewSnapshotArchiveParams struct {
	Client *s3.Client
	Bucket string
	// PublicEndpoint is the address clients download from. Empty means the
	// client's own endpoint.
	PublicEndpoint string
}

func NewSnapshotArchive(params NewSnapshotArchiveParams) *SnapshotArchive {
	return &SnapshotArchive{
		client:         params.Client,
		bucket:         params.Bucket,
		publicEndpoint: params.PublicEndpoint,
	}
}

// SnapshotKey returns the object key of a graph's snapshot.
func SnapshotKey(graphID string) string {
	return fmt.Sprintf("graphs/%s/snapshot.json", graphID)
}

func (a *SnapshotArchive) ArchiveSnapshot(ctx context.Context, graphID string, snap *common.GraphSnapshot) error {
	data, err := store.MarshalSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(SnapshotKey(graphID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot to S3: %w", err)
	}
	return nil
}

// DownloadLink presigns a GET for the snapshot of graphID. The link is
// signed for the public endpoint so the Host header the client sends matches
// the signature; a path on the public endpoint is kept as prefix.
func (a *SnapshotArchive) DownloadLink(ctx context.Context, graphID string) (string, error) {
	presignClient := a.client
	prefix := ""

	if a.publicEndpoint != "" {
		publicURL, err := url.Parse(a.publicEndpoint)
		if err != nil || publicURL.Scheme == "" || publicURL.Host == "" {
			return "", fmt.Errorf("invalid public endpoint: %s", a.publicEndpoint)
		}
		prefix = strings.TrimSuffix(publicURL.Path, "/")
		base := fmt.Sprintf("%s://%s", publicURL.Scheme, publicURL.Host)

		opts := a.client.Options()
		presignClient = s3.NewFromConfig(
			aws.Config{
				Region:      opts.Region,
				Credentials: opts.Credentials,
				HTTPClient:  opts.HTTPClient,
			},
			func(o *s3.Options) {
				o.BaseEndpoint = aws.String(base)
				o.UsePathStyle = true
			},
		)
	}

	out, err := s3.NewPresignClient(presignClient).PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(SnapshotKey(graphID)),
		},
		s3.WithPresignExpires(linkExpiry),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate download link: %w", err)
	}
	if prefix == "" {
		return out.URL, nil
	}

	signedURL, err := url.Parse(out.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse presigned url: %w", err)
	}
	signedURL.Path = prefix + signedURL.Path
	return signedURL.String(), nil
}
