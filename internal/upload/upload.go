// Package upload validates applicant images, normalizes them and writes them
// to blob storage under collision-free keys.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"kycgate/internal/blob"
	"kycgate/internal/platform/config"
	"kycgate/internal/upload/normalize"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/requestcontext"
)

// File is one uploaded file as declared by the client.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FromMultipart adapts a parsed multipart file header.
func FromMultipart(fh *multipart.FileHeader) File {
	return File{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// FromBytes builds a File from in-memory content.
func FromBytes(filename, contentType string, data []byte) File {
	return File{
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Result describes a stored file.
type Result struct {
	URL         string
	Filename    string
	Path        string
	Bucket      string
	Size        int64
	ContentType string
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	store      blob.Store
	normalizer *normalize.Normalizer
	logger     *slog.Logger

	maxFileSize     int64
	extensions      []string
	mimeTypes       []string
	documentsBucket string
	selfiesBucket   string
	signedURLs      bool
	signedURLTTL    time.Duration
	timeout         time.Duration
}

// New builds a Pipeline from the upload and storage settings.
func New(store blob.Store, normalizer *normalize.Normalizer, up config.Upload, st config.Storage, logger *slog.Logger) *Pipeline {
	lower := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			out = append(out, strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
		}
		return out
	}
	return &Pipeline{
		store:           store,
		normalizer:      normalizer,
		logger:          logger,
		maxFileSize:     up.MaxFileSize,
		extensions:      lower(up.AllowedExtensions),
		mimeTypes:       lower(up.AllowedMIMETypes),
		documentsBucket: st.DocumentsBucket,
		selfiesBucket:   st.SelfiesBucket,
		signedURLs:      st.SignedURLs,
		signedURLTTL:    st.SignedURLTTL,
		timeout:         up.Timeout,
	}
}

// Validate checks size, declared content type and extension without reading
// the file.
func (p *Pipeline) Validate(f File) error {
	if f.Size > p.maxFileSize {
		return dErrors.New(dErrors.CodePayloadTooLarge,
			fmt.Sprintf("file too large: maximum size is %d bytes", p.maxFileSize))
	}
	mediaType, _, _ := strings.Cut(strings.ToLower(f.ContentType), ";")
	if !slices.Contains(p.mimeTypes, strings.TrimSpace(mediaType)) {
		return dErrors.New(dErrors.CodeUnsupportedMedia,
			fmt.Sprintf("unsupported file type: allowed types are %s", strings.Join(p.mimeTypes, ", ")))
	}
	if ext := extension(f.Filename); ext == "" || !slices.Contains(p.extensions, ext) {
		return dErrors.New(dErrors.CodeUnsupportedMedia,
			fmt.Sprintf("unsupported file extension: allowed extensions are %s", strings.Join(p.extensions, ", ")))
	}
	return nil
}

// Upload validates, normalizes and stores f under folder/<uuid>.<ext> in
// bucket. A storage failure is reported once; there is no retry.
func (p *Pipeline) Upload(ctx context.Context, f File, bucket, folder string) (*Result, error) {
	if err := p.Validate(f); err != nil {
		return nil, err
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	raw, err := p.read(f)
	if err != nil {
		return nil, err
	}
	data := p.normalizer.Normalize(ctx, raw)

	filename := uuid.NewString() + "." + extension(f.Filename)
	key := filename
	if folder != "" {
		key = path.Join(folder, filename)
	}

	if err := p.store.Put(ctx, bucket, key, data, normalize.ContentType); err != nil {
		p.logger.ErrorContext(ctx, "blob upload failed",
			"bucket", bucket,
			"path", key,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "file upload failed")
	}

	url, err := p.url(ctx, bucket, key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "file upload failed")
	}
	return &Result{
		URL:         url,
		Filename:    filename,
		Path:        key,
		Bucket:      bucket,
		Size:        int64(len(data)),
		ContentType: normalize.ContentType,
	}, nil
}

// UploadIDDocument stores an identity document under documents/<username>.
func (p *Pipeline) UploadIDDocument(ctx context.Context, f File, username string) (*Result, error) {
	return p.Upload(ctx, f, p.documentsBucket, "documents/"+username)
}

// UploadSelfie stores a selfie under selfies/<username>.
func (p *Pipeline) UploadSelfie(ctx context.Context, f File, username string) (*Result, error) {
	return p.Upload(ctx, f, p.selfiesBucket, "selfies/"+username)
}

// Delete removes a stored file. It is maintenance surface for operators;
// request handling never deletes blobs.
func (p *Pipeline) Delete(ctx context.Context, bucket, key string) error {
	if err := p.store.Delete(ctx, bucket, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "file delete failed")
	}
	return nil
}

// SignedURL issues a time-limited URL for a stored file that was uploaded
// with public URLs. Maintenance surface; uploads sign their own URLs when
// STORAGE_SIGNED_URLS is set.
func (p *Pipeline) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := p.store.SignedURL(ctx, bucket, key, ttl)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeStorage, "signed url generation failed")
	}
	return u, nil
}

func (p *Pipeline) url(ctx context.Context, bucket, key string) (string, error) {
	if p.signedURLs {
		return p.store.SignedURL(ctx, bucket, key, p.signedURLTTL)
	}
	return p.store.PublicURL(bucket, key), nil
}

// read loads the whole file, refusing content larger than the declared limit
// even when the declared size lied.
func (p *Pipeline) read(f File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "could not read uploaded file")
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, p.maxFileSize+1))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "could not read uploaded file")
	}
	if int64(len(data)) > p.maxFileSize {
		return nil, dErrors.New(dErrors.CodePayloadTooLarge,
			fmt.Sprintf("file too large: maximum size is %d bytes", p.maxFileSize))
	}
	return data, nil
}

// extension returns the lowercased text after the last dot, or "".
func extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}
