// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package devreader

import (
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
)

// S3Object is a Reader backed by an object in S3 (or an
// S3-compatible store), for images that live in object storage
// rather than on local disk. Every ReadAt issues a ranged GetObject
// request; there is no local caching layer, so callers that do many
// small reads of the same region should wrap this in something that
// coalesces or caches.
type S3Object struct {
	client *s3.S3
	bucket string
	key    string
	size   btrfsvol.PhysicalAddr
}

var _ Reader = (*S3Object)(nil)

// OpenS3Object opens "s3://bucket/key" using the given AWS region,
// discovering the object's length with a HeadObject call.
func OpenS3Object(region, bucket, key string) (*S3Object, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("devreader: s3 session: %w", err)
	}
	client := s3.New(sess)
	head, err := client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("devreader: s3 head %s/%s: %w", bucket, key, err)
	}
	return &S3Object{
		client: client,
		bucket: bucket,
		key:    key,
		size:   btrfsvol.PhysicalAddr(aws.Int64Value(head.ContentLength)),
	}, nil
}

func (r *S3Object) Name() string { return "s3://" + r.bucket + "/" + r.key }

func (r *S3Object) Size() btrfsvol.PhysicalAddr { return r.size }

func (r *S3Object) ReadAt(p []byte, off btrfsvol.PhysicalAddr) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	rng := fmt.Sprintf("bytes=%d-%d", off, int64(off)+int64(len(p))-1)
	out, err := r.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(rng),
	})
	if err != nil {
		return 0, fmt.Errorf("devreader: s3 get %s range %s: %w", r.Name(), rng, err)
	}
	defer out.Body.Close()
	return io.ReadFull(out.Body, p)
}

func (r *S3Object) Close() error { return nil }
