// Package publish uploads a finished export tree to S3 (or an S3-compatible
// endpoint such as MinIO), keeping the partition layout in the object keys.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"salesetl/internal/config"
)

// Uploader is the subset of the S3 client used here.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Credentials are static S3 credentials.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// CredentialsFromEnv reads the standard AWS_* variables.
func CredentialsFromEnv(getenv func(string) string) Credentials {
	return Credentials{
		AccessKeyID:     getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    getenv("AWS_SESSION_TOKEN"),
	}
}

// NewClient builds an S3 client for cfg. A custom endpoint switches to
// path-style addressing, which MinIO and most S3 clones expect.
func NewClient(cfg config.S3Publish, creds Credentials) (*s3.Client, error) {
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return nil, errors.New("publish: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region: region,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     creds.AccessKeyID,
				SecretAccessKey: creds.SecretAccessKey,
				SessionToken:    creds.SessionToken,
				Source:          "salesetl",
			}, nil
		}),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts), nil
}

// Stats reports an upload.
type Stats struct {
	Objects int
	Bytes   int64
	Keys    []string
}

// Upload puts every regular file under root to bucket as
// <prefix>/<relative path>. Files are sent in lexical order and the first
// failure stops the upload.
func Upload(ctx context.Context, up Uploader, root, bucket, prefix string) (Stats, error) {
	var st Stats
	if bucket == "" {
		return st, errors.New("publish: bucket is required")
	}

	var files []string
	err := filepath.WalkDir(root, func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return st, fmt.Errorf("publish: walk %s: %w", root, err)
	}
	sort.Strings(files)

	for _, p := range files {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return st, err
		}
		key := path.Join(prefix, filepath.ToSlash(rel))
		n, err := putFile(ctx, up, p, bucket, key)
		if err != nil {
			return st, err
		}
		st.Objects++
		st.Bytes += n
		st.Keys = append(st.Keys, key)
		log.Printf("publish: s3://%s/%s bytes=%d", bucket, key, n)
	}
	return st, nil
}

func putFile(ctx context.Context, up Uploader, p, bucket, key string) (int64, error) {
	f, err := os.Open(p)
	if err != nil {
		return 0, fmt.Errorf("publish: open %s: %w", p, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("publish: stat %s: %w", p, err)
	}
	ct := "application/octet-stream"
	if filepath.Ext(p) == ".parquet" {
		ct = "application/vnd.apache.parquet"
	}
	_, err = up.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(fi.Size()),
		ContentType:   aws.String(ct),
	})
	if err != nil {
		return 0, fmt.Errorf("publish: put s3://%s/%s: %w", bucket, key, err)
	}
	return fi.Size(), nil
}
