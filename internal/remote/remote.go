// Package remote retrieves precomputed digests for objects in S3 buckets.
package remote

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Object pairs a remote key with the digest the object store reports for it.
type Object struct {
	Key  string
	ETag string
}

// Lister is the lookup capability the rest of the tool consumes: given
// buckets, key prefixes and optional glob patterns, return (key, digest)
// pairs.
type Lister interface {
	ListDigests(ctx context.Context, buckets, keys, patterns []string) ([]Object, error)
}

// LookupError wraps any failure while resolving remote digests. It aborts
// the whole batch; no partial results are returned.
type LookupError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *LookupError) Error() string {
	if e.Bucket == "" {
		return fmt.Sprintf("remote lookup: %v", e.Err)
	}
	return fmt.Sprintf("remote lookup s3://%s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// S3Lookup lists object ETags with the AWS SDK.
type S3Lookup struct {
	client s3.ListObjectsV2APIClient
}

// NewS3Lookup builds a lookup from the ambient AWS configuration
// (environment, shared config, instance role).
func NewS3Lookup(ctx context.Context) (*S3Lookup, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, &LookupError{Err: err}
	}
	return &S3Lookup{client: s3.NewFromConfig(cfg)}, nil
}

// NewS3LookupFromClient builds a lookup around an existing client.
func NewS3LookupFromClient(client s3.ListObjectsV2APIClient) *S3Lookup {
	return &S3Lookup{client: client}
}

// ListDigests lists every bucket/key-prefix pair and returns the matching
// objects with unquoted, lowercased ETags.
func (l *S3Lookup) ListDigests(ctx context.Context, buckets, keys, patterns []string) ([]Object, error) {
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}

	var out []Object
	for _, bucket := range buckets {
		for _, key := range keys {
			pager := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
				Bucket: aws.String(bucket),
				Prefix: aws.String(key),
			})
			for pager.HasMorePages() {
				page, err := pager.NextPage(ctx)
				if err != nil {
					return nil, &LookupError{Bucket: bucket, Key: key, Err: err}
				}
				for _, obj := range page.Contents {
					k := aws.ToString(obj.Key)
					if !matchKey(k, patterns) {
						continue
					}
					out = append(out, Object{
						Key:  k,
						ETag: strings.ToLower(strings.Trim(aws.ToString(obj.ETag), `"`)),
					})
				}
			}
		}
	}

	return out, nil
}

// matchKey applies the glob patterns against the full key and its base name,
// since * does not cross / and keys usually carry prefixes. No patterns
// means every key matches.
func matchKey(key string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := path.Match(p, key); ok {
			return true
		}
		if ok, _ := path.Match(p, path.Base(key)); ok {
			return true
		}
	}
	return false
}
