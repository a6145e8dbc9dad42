package buildstamp

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the subset of the S3 client used by s3 targets.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ObjectPutterFactory returns a client for region. An empty region defers to
// the default AWS configuration chain.
type ObjectPutterFactory func(ctx context.Context, region string) (ObjectPutter, error)

func defaultObjectPutter(ctx context.Context, region string) (ObjectPutter, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// putStamp uploads the JSON rendering of r to t.Bucket/t.Key.
func (s *Store) putStamp(ctx context.Context, t Target, r Record) error {
	body, err := renderJSON(r)
	if err != nil {
		return err
	}
	client, err := s.objects(ctx, t.Region)
	if err != nil {
		return err
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.Bucket),
		Key:         aws.String(t.Key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", t.Bucket, t.Key, err)
	}
	return nil
}
