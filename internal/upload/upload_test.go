package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycgate/internal/blob"
	"kycgate/internal/platform/config"
	"kycgate/internal/upload/normalize"
	dErrors "kycgate/pkg/domain-errors"
)

const testMaxSize = 20 * 1024 * 1024

func testConfigs() (config.Upload, config.Storage) {
	return config.Upload{
			MaxFileSize:       testMaxSize,
			AllowedExtensions: []string{"jpg", "jpeg", "png"},
			AllowedMIMETypes:  []string{"image/jpeg", "image/png"},
			Timeout:           5 * time.Second,
		}, config.Storage{
			DocumentsBucket: "kyc-documents",
			SelfiesBucket:   "kyc-selfies",
			SignedURLTTL:    time.Hour,
		}
}

func newTestPipeline(t *testing.T, mutate func(*config.Upload, *config.Storage)) (*Pipeline, *blob.MemoryStore) {
	t.Helper()
	up, st := testConfigs()
	if mutate != nil {
		mutate(&up, &st)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := blob.NewMemoryStore()
	return New(store, normalize.New(1920, 85, logger), up, st, logger), store
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			img.Set(x, y, color.NRGBA{R: 120, G: 60, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// oversized declares a size without backing content; Open must never run.
func oversized(t *testing.T, size int64) File {
	return File{
		Filename:    "huge.jpg",
		ContentType: "image/jpeg",
		Size:        size,
		Open: func() (io.ReadCloser, error) {
			t.Fatal("oversized file must not be read")
			return nil, nil
		},
	}
}

func TestUpload_RejectsOversizedFileWithoutWriting(t *testing.T) {
	p, store := newTestPipeline(t, nil)

	_, err := p.UploadIDDocument(context.Background(), oversized(t, 25*1024*1024), "alice")

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePayloadTooLarge))
	assert.Equal(t, 0, store.Puts())
}

func TestUpload_RejectsContentLargerThanDeclared(t *testing.T) {
	p, store := newTestPipeline(t, func(up *config.Upload, _ *config.Storage) { up.MaxFileSize = 16 })
	f := FromBytes("a.jpg", "image/jpeg", bytes.Repeat([]byte{1}, 64))
	f.Size = 4

	_, err := p.Upload(context.Background(), f, "b", "")

	assert.True(t, dErrors.HasCode(err, dErrors.CodePayloadTooLarge))
	assert.Equal(t, 0, store.Puts())
}

func TestValidate(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	data := []byte("x")

	cases := []struct {
		name string
		file File
		code dErrors.Code
	}{
		{"gif mime", FromBytes("a.jpg", "image/gif", data), dErrors.CodeUnsupportedMedia},
		{"missing mime", FromBytes("a.jpg", "", data), dErrors.CodeUnsupportedMedia},
		{"gif extension", FromBytes("a.gif", "image/jpeg", data), dErrors.CodeUnsupportedMedia},
		{"no extension", FromBytes("photo", "image/jpeg", data), dErrors.CodeUnsupportedMedia},
		{"trailing dot", FromBytes("photo.", "image/jpeg", data), dErrors.CodeUnsupportedMedia},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := p.Validate(tc.file)
			assert.True(t, dErrors.HasCode(err, tc.code), "got %v", err)
		})
	}

	t.Run("extension and mime are case-insensitive", func(t *testing.T) {
		assert.NoError(t, p.Validate(FromBytes("SCAN.JPG", "IMAGE/JPEG; charset=binary", data)))
	})
}

func TestUploadIDDocument_StoresNormalizedJPEG(t *testing.T) {
	p, store := newTestPipeline(t, nil)

	res, err := p.UploadIDDocument(context.Background(), FromBytes("Passport.PNG", "image/png", pngBytes(t)), "alice")
	require.NoError(t, err)

	assert.Equal(t, "kyc-documents", res.Bucket)
	assert.True(t, strings.HasPrefix(res.Path, "documents/alice/"))
	assert.True(t, strings.HasSuffix(res.Filename, ".png"), "key keeps the lowercased original extension")
	assert.Equal(t, "documents/alice/"+res.Filename, res.Path)
	assert.Equal(t, "memory://kyc-documents/"+res.Path, res.URL)
	assert.Equal(t, "image/jpeg", res.ContentType)

	obj, ok := store.Get("kyc-documents", res.Path)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Equal(t, int64(len(obj.Data)), res.Size)
	_, format, err := image.DecodeConfig(bytes.NewReader(obj.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestUploadSelfie_UsesSelfieBucketAndUniqueKeys(t *testing.T) {
	p, store := newTestPipeline(t, nil)
	f := FromBytes("me.jpg", "image/jpeg", pngBytes(t))

	first, err := p.UploadSelfie(context.Background(), f, "bob")
	require.NoError(t, err)
	second, err := p.UploadSelfie(context.Background(), f, "bob")
	require.NoError(t, err)

	assert.Equal(t, "kyc-selfies", first.Bucket)
	assert.True(t, strings.HasPrefix(first.Path, "selfies/bob/"))
	assert.NotEqual(t, first.Filename, second.Filename)
	assert.Equal(t, 2, store.Len())
}

func TestUpload_StorageFailure(t *testing.T) {
	p, store := newTestPipeline(t, nil)
	store.FailPuts(true)

	_, err := p.UploadSelfie(context.Background(), FromBytes("me.jpg", "image/jpeg", pngBytes(t)), "bob")

	require.ErrorIs(t, err, dErrors.New(dErrors.CodeStorage, "file upload failed"))
	assert.True(t, errors.Is(err, blob.ErrInjected))
	assert.Equal(t, 1, store.Puts(), "no retry")
}

func TestUpload_SignedURLs(t *testing.T) {
	p, _ := newTestPipeline(t, func(_ *config.Upload, st *config.Storage) { st.SignedURLs = true })

	res, err := p.UploadSelfie(context.Background(), FromBytes("me.jpg", "image/jpeg", pngBytes(t)), "bob")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.URL, "?expires=3600"))

	signed, err := p.SignedURL(context.Background(), res.Bucket, res.Path, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, signed, "expires=60")
}

func TestDelete(t *testing.T) {
	p, store := newTestPipeline(t, nil)
	res, err := p.UploadSelfie(context.Background(), FromBytes("me.jpg", "image/jpeg", pngBytes(t)), "bob")
	require.NoError(t, err)

	require.NoError(t, p.Delete(context.Background(), res.Bucket, res.Path))
	assert.Equal(t, 0, store.Len())
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "jpeg", extension("a.b.JPEG"))
	assert.Equal(t, "", extension("noext"))
	assert.Equal(t, "", extension("dot."))
}
