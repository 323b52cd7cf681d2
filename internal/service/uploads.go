package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrUnsupportedFileType indicates an upload whose detected content type is not accepted.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrFileTooLarge indicates an upload above the accepted size.
	ErrFileTooLarge = errors.New("file too large")
)

const maxUploadBytes = 20 << 20

// FileUploader stores files in an object store folder and returns their URL.
type FileUploader interface {
	Upload(ctx context.Context, folder, name string, reader io.Reader) (string, error)
}

var submissionMIMETypes = []string{
	"application/pdf",
	"application/zip",
	"application/x-zip-compressed",
	"text/plain",
	"text/markdown",
	"text/html",
	"image/png",
	"image/jpeg",
}

// loadUpload reads a multipart file and sniffs its content type.
func loadUpload(file *multipart.FileHeader) ([]byte, *mimetype.MIME, error) {
	if file.Size > maxUploadBytes {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, file.Size)
	}

	reader, err := file.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxUploadBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > maxUploadBytes {
		return nil, nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, maxUploadBytes)
	}

	return data, mimetype.Detect(data), nil
}

func mimeAllowed(detected *mimetype.MIME, allowed []string) bool {
	for _, candidate := range allowed {
		if detected.Is(candidate) {
			return true
		}
	}
	return false
}

// isMediaOf reports whether detected is an audio or video type, walking parents.
func isMediaOf(detected *mimetype.MIME, kind string) bool {
	for m := detected; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), kind+"/") {
			return true
		}
	}
	return false
}

// readableText returns submission bytes as text when the content is textual.
func readableText(data []byte, detected *mimetype.MIME) string {
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return string(data)
		}
	}
	return ""
}
