package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// Upload folders, relative to the store's root folder.
const (
	FolderPosts    = "posts"
	FolderProjects = "projects"
	FolderStories  = "stories"
	FolderAvatars  = "avatars"
)

// MediaStore persists an uploaded file and returns the URL it is served from.
type MediaStore interface {
	Save(ctx context.Context, folder, filename string, data []byte) (string, error)
}

// Upload is a validated file read from a request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReadUpload reads at most max bytes from r and accepts only images and videos,
// judged by content rather than the client's declared type.
func ReadUpload(r io.Reader, filename string, max int64) (*Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, apperr.Internal("Failed to read upload", err)
	}
	if int64(len(data)) > max {
		return nil, apperr.Validation(fmt.Sprintf("File too large (max %d MB)", max>>20))
	}
	if len(data) == 0 {
		return nil, apperr.Validation("Uploaded file is empty")
	}

	mt := mimetype.Detect(data)
	ct := mt.String()
	// SVG is markup and can carry script.
	if (!strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "video/")) || mt.Is("image/svg+xml") {
		return nil, apperr.Validation("Only image and video files are allowed")
	}
	if i := strings.Index(ct, ";"); i != -1 {
		ct = ct[:i]
	}

	// The stored extension always follows the sniffed type, never the client's name.
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return &Upload{Filename: base + mt.Extension(), ContentType: ct, Data: data}, nil
}

// CloudinaryStore uploads to Cloudinary under a root folder.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld, folder: folder}, nil
}

func (s *CloudinaryStore) Save(ctx context.Context, folder, _ string, data []byte) (string, error) {
	params := uploader.UploadParams{
		Folder:       strings.Trim(s.folder+"/"+folder, "/"),
		ResourceType: "auto", // image or video
	}
	if folder == FolderAvatars {
		params.Transformation = "c_fill,g_face,h_400,w_400/q_auto"
	}

	res, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), params)
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("failed to upload to Cloudinary: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

// MinioStore uploads to an S3-compatible bucket.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool, publicURL string) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO: %w", err)
	}
	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + endpoint
	}
	return &MinioStore{client: client, bucket: bucket, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *MinioStore) Save(ctx context.Context, folder, filename string, data []byte) (string, error) {
	now := time.Now().UTC()
	objectName := fmt.Sprintf("%s/%d/%02d/%s", folder, now.Year(), now.Month(), uniqueName(data))

	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType: mimetype.Detect(data).String(),
			UserMetadata: map[string]string{
				"original-filename": filepath.Base(filename),
				"uploaded-at":       now.Format(time.RFC3339),
			},
		})
	if err != nil {
		return "", fmt.Errorf("failed to upload to MinIO: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, objectName), nil
}

// LocalStore writes files under Dir; the router serves them at URLPrefix.
type LocalStore struct {
	Dir       string
	URLPrefix string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{Dir: dir, URLPrefix: "/uploads"}
}

func (s *LocalStore) Save(_ context.Context, _, _ string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := uniqueName(data)
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return s.URLPrefix + "/" + name, nil
}

// uniqueName is <unix-ms>-<uuid><ext>. The extension comes from the content so a
// file server never picks a content type the bytes do not have.
func uniqueName(data []byte) string {
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), mimetype.Detect(data).Extension())
}

// FallbackStore tries Primary and writes to Fallback when it fails.
type FallbackStore struct {
	Primary  MediaStore
	Fallback MediaStore
}

func (s *FallbackStore) Save(ctx context.Context, folder, filename string, data []byte) (string, error) {
	if s.Primary != nil {
		url, err := s.Primary.Save(ctx, folder, filename, data)
		if err == nil {
			return url, nil
		}
		log.Warn().Err(err).Str("folder", folder).Msg("primary media store failed, saving locally")
	}
	if s.Fallback == nil {
		return "", errors.New("no media store available")
	}
	url, err := s.Fallback.Save(ctx, folder, filename, data)
	if err != nil {
		return "", apperr.Internal("Failed to save media", err)
	}
	return url, nil
}
