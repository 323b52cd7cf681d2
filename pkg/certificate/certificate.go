// Package certificate renders qualification certificates and hands them to an
// object store.
package certificate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	width  = 1600
	height = 1131
)

// Data is the text printed on a certificate.
type Data struct {
	StudentName string
	Program     string
	IssuedAt    time.Time
}

// Uploader persists a rendered certificate and returns a retrievable reference.
type Uploader interface {
	Upload(ctx context.Context, folder, name string, reader io.Reader) (string, error)
}

var (
	fontsOnce sync.Once
	regular   *truetype.Font
	bold      *truetype.Font
	fontsErr  error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		regular, fontsErr = truetype.Parse(goregular.TTF)
		if fontsErr != nil {
			return
		}
		bold, fontsErr = truetype.Parse(gobold.TTF)
	})
	return fontsErr
}

func face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size})
}

// Render draws the certificate as a PNG into w.
func Render(w io.Writer, data Data) error {
	if strings.TrimSpace(data.StudentName) == "" {
		return fmt.Errorf("student name is required")
	}
	if err := loadFonts(); err != nil {
		return fmt.Errorf("load fonts: %w", err)
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0.11, 0.27, 0.53)
	dc.SetLineWidth(12)
	dc.DrawRectangle(40, 40, width-80, height-80)
	dc.Stroke()
	dc.SetLineWidth(3)
	dc.DrawRectangle(70, 70, width-140, height-140)
	dc.Stroke()

	cx := float64(width) / 2

	dc.SetFontFace(face(bold, 72))
	dc.DrawStringAnchored("Certificate of Qualification", cx, 260, 0.5, 0.5)

	dc.SetRGB(0.2, 0.2, 0.2)
	dc.SetFontFace(face(regular, 32))
	dc.DrawStringAnchored("This certifies that", cx, 400, 0.5, 0.5)

	dc.SetRGB(0, 0, 0)
	dc.SetFontFace(face(bold, 64))
	dc.DrawStringAnchored(data.StudentName, cx, 510, 0.5, 0.5)

	dc.SetRGB(0.2, 0.2, 0.2)
	dc.SetFontFace(face(regular, 32))
	dc.DrawStringAnchored("has successfully qualified in", cx, 620, 0.5, 0.5)

	dc.SetRGB(0.11, 0.27, 0.53)
	dc.SetFontFace(face(bold, 44))
	dc.DrawStringAnchored(data.Program, cx, 710, 0.5, 0.5)

	dc.SetRGB(0.3, 0.3, 0.3)
	dc.SetFontFace(face(regular, 26))
	dc.DrawStringAnchored("Issued "+data.IssuedAt.Format("2 January 2006"), cx, 900, 0.5, 0.5)

	return dc.EncodePNG(w)
}

// Generator renders certificates and uploads them into a fixed folder.
type Generator struct {
	uploader Uploader
	folder   string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewGenerator constructs a Generator.
func NewGenerator(uploader Uploader, folder string, logger zerolog.Logger) *Generator {
	return &Generator{
		uploader: uploader,
		folder:   folder,
		logger:   logger.With().Str("component", "certificate_generator").Logger(),
		now:      time.Now,
	}
}

// Generate renders a certificate for studentName and returns the stored document URL.
func (g *Generator) Generate(ctx context.Context, studentName, program string) (string, error) {
	if g.uploader == nil {
		return "", fmt.Errorf("certificate storage is not configured")
	}

	issued := g.now().UTC()
	var buf bytes.Buffer
	if err := Render(&buf, Data{StudentName: studentName, Program: program, IssuedAt: issued}); err != nil {
		return "", fmt.Errorf("render certificate: %w", err)
	}

	name := fmt.Sprintf("certificate-%s.png", studentName)
	url, err := g.uploader.Upload(ctx, g.folder, name, &buf)
	if err != nil {
		return "", fmt.Errorf("store certificate: %w", err)
	}

	g.logger.Info().Str("student", studentName).Str("program", program).Str("url", url).Msg("certificate issued")
	return url, nil
}
