package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

var s3URIPattern = regexp.MustCompile(`^s3://([^/]+)/?(.*)$`)

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads every CSV object under an S3 prefix. Rows of all objects are grouped
// together, so a conversation may span several files.
type S3Source struct {
	client S3API
	bucket string
	prefix string
	base   time.Time
}

// ParseS3URI splits s3://bucket/prefix into bucket and prefix.
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	m := s3URIPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", "", fmt.Errorf("invalid S3 URI %q: expected s3://bucket-name/path", uri)
	}
	return m[1], m[2], nil
}

// NewS3Source creates an S3 source using the AWS default credential chain.
func NewS3Source(ctx context.Context, uri string, opts Options) (*S3Source, error) {
	bucket, prefix, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	var loadOpts []func(*config.LoadOptions) error
	if opts.AWSRegion != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.AWSRegion))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &S3Source{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		base:   opts.Base,
	}, nil
}

// NewS3SourceWithClient creates an S3 source over an existing client.
func NewS3SourceWithClient(client S3API, uri string, base time.Time) (*S3Source, error) {
	bucket, prefix, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	return &S3Source{client: client, bucket: bucket, prefix: prefix, base: base}, nil
}

// GetConversations lists the prefix and reads each .csv object in listing order.
func (s *S3Source) GetConversations(ctx context.Context) ([]model.Conversation, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var rows []row
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, s.prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || !strings.HasSuffix(strings.ToLower(key), ".csv") {
				continue
			}
			fileRows, err := s.readObject(ctx, key)
			if err != nil {
				return nil, err
			}
			rows = append(rows, fileRows...)
		}
	}
	return normalize(rows, s.base)
}

func (s *S3Source) readObject(ctx context.Context, key string) ([]row, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}
	rows, err := readCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse s3://%s/%s: %w", s.bucket, key, err)
	}
	return rows, nil
}
