package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
}

// Service stores submission files, feedback media and certificates in Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		logger: logger.With().Str("component", "cloudinary").Logger(),
		now:    time.Now,
	}, nil
}

const uploadTimeout = 30 * time.Second

// Upload stores reader under folder and returns the secure delivery URL. Assets
// are tagged with the top-level folder name so they can be purged per kind.
func (s *Service) Upload(ctx context.Context, folder, name string, reader io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	folder = strings.Trim(folder, "/")
	publicID := BuildPublicID(name, s.now())
	started := time.Now()

	result, err := s.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "auto",
		Tags:         uploadTags(folder),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", folder, publicID, err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("upload %s/%s rejected: %s", folder, publicID, result.Error.Message)
	}

	s.logger.Debug().
		Str("folder", folder).
		Str("public_id", result.PublicID).
		Int("bytes", result.Bytes).
		Dur("took", time.Since(started)).
		Msg("asset uploaded")

	return result.SecureURL, nil
}

func uploadTags(folder string) []string {
	tags := []string{"gema-lms"}
	if kind := path.Base(folder); kind != "" && kind != "." {
		tags = append(tags, kind)
	}
	return tags
}

// BuildPublicID turns a file name into a URL-safe, time-suffixed public id.
func BuildPublicID(name string, at time.Time) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "upload"
	}

	return fmt.Sprintf("%s-%d", base, at.UnixNano())
}
