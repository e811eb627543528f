// Package output persists the ordered inspection result.
//
// Destinations are either a local file path or an s3://bucket/key URI. A
// destination ending in ".zst" is zstd-compressed before it is stored.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"

	"sqsinspect/internal/types"
)

// DefaultDestination is where results go when no destination is configured.
const DefaultDestination = "sqs-inspect.json"

const (
	s3Scheme         = "s3://"
	compressedSuffix = ".zst"

	contentTypeJSON = "application/json"
	contentTypeZstd = "application/zstd"
)

// S3Client is the subset of the S3 SDK client used by the Writer.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ S3Client = (*s3.Client)(nil)

// Writer stores results at local or S3 destinations.
type Writer struct {
	s3     S3Client
	logger *slog.Logger
}

// NewWriter creates a Writer. s3Client may be nil when only local
// destinations are used.
func NewWriter(s3Client S3Client, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{s3: s3Client, logger: logger}
}

// Write serializes msgs as an indented JSON array and stores it at dest.
// It returns the resolved location: an absolute file path or the S3 URI.
// Failures are returned as ErrCodeOutputWrite.
func (w *Writer) Write(ctx context.Context, dest string, msgs []types.NormalizedMessage) (string, error) {
	if dest == "" {
		dest = DefaultDestination
	}
	compress := strings.HasSuffix(dest, compressedSuffix)

	data, err := Encode(msgs, compress)
	if err != nil {
		return "", outputError("failed to encode result", dest, err)
	}

	if strings.HasPrefix(dest, s3Scheme) {
		return w.writeS3(ctx, dest, data, compress)
	}
	return w.writeFile(ctx, dest, data)
}

// Encode renders msgs as a two-space indented JSON array. A nil slice
// renders as []. When compress is set the document is zstd-compressed.
func Encode(msgs []types.NormalizedMessage, compress bool) ([]byte, error) {
	if msgs == nil {
		msgs = []types.NormalizedMessage{}
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}
	data = append(data, '\n')

	if !compress {
		return data, nil
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
}

// writeFile writes through a temp file in the target directory and renames
// it into place, so a failed run never leaves a truncated result behind.
func (w *Writer) writeFile(ctx context.Context, dest string, data []byte) (string, error) {
	path, err := filepath.Abs(dest)
	if err != nil {
		return "", outputError("failed to resolve output path", dest, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", outputError("failed to create output directory", path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return "", outputError("failed to create temp file", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", outputError("failed to write output", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", outputError("failed to write output", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return "", outputError("failed to set output permissions", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", outputError("failed to move output into place", path, err)
	}

	w.logger.DebugContext(ctx, "result written", "path", path, "bytes", len(data))
	return path, nil
}

func (w *Writer) writeS3(ctx context.Context, dest string, data []byte, compress bool) (string, error) {
	bucket, key, err := ParseS3URI(dest)
	if err != nil {
		return "", outputError("invalid S3 destination", dest, err)
	}
	if w.s3 == nil {
		return "", outputError("no S3 client configured", dest, nil)
	}

	contentType := contentTypeJSON
	if compress {
		contentType = contentTypeZstd
	}

	_, err = w.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", outputError("failed to upload result to S3", dest, err)
	}

	w.logger.DebugContext(ctx, "result uploaded", "bucket", bucket, "key", key, "bytes", len(data))
	return dest, nil
}

// ParseS3URI splits s3://bucket/key into its bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("%q is not an s3:// URI", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%q must name both a bucket and an object key", uri)
	}
	return bucket, key, nil
}

func outputError(msg, dest string, err error) *types.AppError {
	return types.NewAppErrorWithDetails(types.ErrCodeOutputWrite, msg, err, map[string]any{
		"destination": dest,
	})
}
