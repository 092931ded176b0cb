package notify

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Settings locates the mail-drop bucket. Any S3 compatible store works,
// MinIO included.
type S3Settings struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Transport drops every message as an .eml object into a bucket, where
// a relay or a developer can pick it up.
type S3Transport struct {
	client objectPutter
	bucket string
	now    func() time.Time
}

// NewS3Client builds an S3 client with static credentials and a custom
// endpoint.
func NewS3Client(ctx context.Context, s S3Settings) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(s.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.AccessKey,
			s.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

func NewS3Transport(client objectPutter, bucket string) *S3Transport {
	return &S3Transport{client: client, bucket: bucket, now: time.Now}
}

func (t *S3Transport) objectKey() string {
	d := t.now().UTC()
	return fmt.Sprintf("outbox/%d/%02d/%02d/%v.eml", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (t *S3Transport) Send(ctx context.Context, msg *Message) error {
	raw, err := msg.Bytes()
	if err != nil {
		return err
	}

	key := t.objectKey()
	_, err = t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("message/rfc822"),
		Metadata:    map[string]string{"to": msg.To},
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

var _ Transport = (*S3Transport)(nil)
