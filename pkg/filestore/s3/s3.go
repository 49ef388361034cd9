package s3

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/ec2rolecreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type Config struct {
	Key    string
	Secret string
	Region string
	Bucket string
	// Endpoint of an S3 compatible service, empty for AWS.
	Endpoint string
	// Private objects are served with presigned URLs.
	Private bool
	Debug   bool
}

// New returns a new S3 file store.
func New(cfg *Config) (*Store, error) {
	s := &Store{
		cfg: *cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	if err := s.start(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

type Store struct {
	cfg        Config
	client     *s3.Client
	httpClient *http.Client
}

func (s *Store) PublicURL(name string) string {
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.cfg.Endpoint, s.cfg.Bucket, name)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, name)
}

func (s *Store) start(ctx context.Context) error {
	var provider aws.CredentialsProvider
	if s.cfg.Key == "" && s.cfg.Secret == "" {
		// Load credentials from EC2 Instance Role
		provider = ec2rolecreds.New()
	} else {
		provider = credentials.NewStaticCredentialsProvider(s.cfg.Key, s.cfg.Secret, "")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(provider),
		config.WithRegion(s.cfg.Region))
	if err != nil {
		return fmt.Errorf("s3: couldn't load aws config: %w", err)
	}

	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	// Check if bucket exists
	input := &s3.HeadBucketInput{
		Bucket: aws.String(s.cfg.Bucket),
	}
	if _, err := s.client.HeadBucket(ctx, input); err != nil {
		return fmt.Errorf("s3: couldn't head bucket %s: %w", s.cfg.Bucket, err)
	}
	return nil
}

// URL returns the public URL of the object or a presigned one for private
// buckets.
func (s *Store) URL(ctx context.Context, name string) (string, error) {
	if !s.cfg.Private {
		return s.PublicURL(name), nil
	}
	return s.presign(ctx, name)
}

func (s *Store) presign(ctx context.Context, name string) (string, error) {
	client := s3.NewPresignClient(s.client)
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(name),
	}
	presignedURL, err := client.PresignGetObject(ctx, input, s3.WithPresignExpires(24*time.Hour))
	if err != nil {
		return "", fmt.Errorf("s3: couldn't presign object %s: %w", name, err)
	}
	return presignedURL.URL, nil
}

// ContentType returns the mime type of the generated files.
func ContentType(path string) (string, error) {
	switch ext := filepath.Ext(path); ext {
	case ".mp3":
		return "audio/mpeg", nil
	case ".wav":
		return "audio/wav", nil
	case ".mid", ".midi":
		return "audio/midi", nil
	case ".png":
		return "image/png", nil
	default:
		return "", fmt.Errorf("s3: unknown content type for extension %s", ext)
	}
}

func (s *Store) Upload(ctx context.Context, path, name string) error {
	contentType, err := ContentType(path)
	if err != nil {
		return err
	}
	reader, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("s3: couldn't open file %s: %w", path, err)
	}
	defer reader.Close()
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(name),
		Body:        reader,
		ContentType: aws.String(contentType),
	}
	if !s.cfg.Private {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return fmt.Errorf("s3: couldn't put object %s: %w", name, err)
	}
	if s.cfg.Debug {
		js, _ := json.Marshal(out)
		log.Println("s3: put object", name, string(js))
	}
	return nil
}

var backoff = []time.Duration{
	5 * time.Second,
	15 * time.Second,
	30 * time.Second,
}

func (s *Store) Download(ctx context.Context, path, name string) error {
	u, err := s.presign(ctx, name)
	if err != nil {
		return err
	}

	maxAttempts := 3
	attempts := 0
	var b []byte
	for {
		b, err = s.download(ctx, name, u)
		if err == nil {
			break
		}
		attempts++
		if attempts >= maxAttempts {
			return err
		}
		wait := backoff[attempts-1]
		t := time.NewTimer(wait)
		if s.cfg.Debug {
			log.Printf("%v (retrying in %s)\n", err, wait)
		}
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("s3: couldn't write %s: %w", path, err)
	}
	return nil
}

func (s *Store) download(ctx context.Context, name, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("s3: couldn't create request for %s: %w", name, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("s3: couldn't download %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("s3: couldn't download %s: status %d", name, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: couldn't read %s: %w", name, err)
	}
	return b, nil
}
