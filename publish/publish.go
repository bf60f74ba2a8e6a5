package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/opengs/speciesexport/checkpoint"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var ErrExportIncomplete = errors.New("export is not finished, a checkpoint is still stored")

// ObjectPutter is the part of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Result of a publish run.
type Result struct {
	Files int
	Bytes int64
}

// Publisher uploads finished output files to one bucket.
type Publisher struct {
	client ObjectPutter
	bucket string
	store  checkpoint.Store

	prefix      string
	parallelism int64
	logger      *slog.Logger
}

func New(client ObjectPutter, bucket string, store checkpoint.Store, options ...PublisherOption) *Publisher {
	p := &Publisher{
		client:      client,
		bucket:      bucket,
		store:       store,
		parallelism: 4,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Publish uploads every regular file under `dir`. Object keys are the file paths relative to `dir` behind the prefix.
// It refuses to run while the export job still has a checkpoint.
func (p *Publisher) Publish(ctx context.Context, dir string) (Result, error) {
	if _, found, err := checkpoint.Load(ctx, p.store); err != nil {
		return Result{}, err
	} else if found {
		return Result{}, ErrExportIncomplete
	}

	files, err := outputFiles(dir)
	if err != nil {
		return Result{}, err
	}

	var uploaded atomic.Int64
	var bytes atomic.Int64
	workLock := semaphore.NewWeighted(p.parallelism)
	group, groupCtx := errgroup.WithContext(ctx)
	for _, rel := range files {
		if err := workLock.Acquire(groupCtx, 1); err != nil {
			break
		}

		group.Go(func() error {
			defer workLock.Release(1)

			size, err := p.upload(groupCtx, dir, rel)
			if err != nil {
				return err
			}
			uploaded.Add(1)
			bytes.Add(size)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return Result{Files: int(uploaded.Load()), Bytes: bytes.Load()}, errors.Join(errors.New("failed to publish output files"), err)
	}
	if err := ctx.Err(); err != nil {
		return Result{Files: int(uploaded.Load()), Bytes: bytes.Load()}, err
	}

	result := Result{Files: int(uploaded.Load()), Bytes: bytes.Load()}
	p.logger.InfoContext(ctx, "output published", "bucket", p.bucket, "prefix", p.prefix, "files", result.Files, "bytes", result.Bytes)
	return result, nil
}

func (p *Publisher) upload(ctx context.Context, dir string, rel string) (int64, error) {
	fullPath := filepath.Join(dir, filepath.FromSlash(rel))

	contentType := "application/octet-stream"
	if mtype, err := mimetype.DetectFile(fullPath); err == nil {
		contentType = mtype.String()
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return 0, errors.Join(fmt.Errorf("failed to open %s", fullPath), err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, errors.Join(fmt.Errorf("failed to stat %s", fullPath), err)
	}

	key := path.Join(p.prefix, rel)
	if _, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	}); err != nil {
		return 0, errors.Join(fmt.Errorf("failed to upload %s to s3://%s/%s", fullPath, p.bucket, key), err)
	}

	p.logger.DebugContext(ctx, "file uploaded", "path", fullPath, "key", key, "bytes", info.Size())
	return info.Size(), nil
}

// Regular non hidden files under dir in lexical order, as slash separated relative paths.
func outputFiles(dir string) ([]string, error) {
	var files []string
	err := fs.WalkDir(os.DirFS(dir), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to list output directory %s", dir), err)
	}
	return files, nil
}
