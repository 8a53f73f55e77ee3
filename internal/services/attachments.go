package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-resty/resty/v2"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog/log"
	"github.com/vincent-petithory/dataurl"
	"gorm.io/gorm"

	"glenda/internal/models"
)

// Gateway media URLs expire after roughly three days; archive in the window
// between the inbound burst settling and the URL dying.
const (
	archiveMinAge = 10 * time.Minute
	archiveMaxAge = 72 * time.Hour
)

// Images wider or taller than this are downscaled before storage so inline
// base64 blocks stay within request limits.
const maxImageDimension = 1568

// S3MirrorConfig configures the optional S3 copy of archived media.
type S3MirrorConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Archiver downloads inbound gateway attachments into the database before
// their URLs expire, optionally mirroring them to S3.
type Archiver struct {
	db         *gorm.DB
	httpClient *resty.Client
	clock      Clock
	s3Client   *s3.Client
	s3Bucket   string
}

func NewArchiver(db *gorm.DB, clock Clock, s3cfg S3MirrorConfig) *Archiver {
	a := &Archiver{
		db:         db,
		httpClient: resty.New().SetTimeout(60 * time.Second),
		clock:      clock,
	}
	if s3cfg.Enabled {
		cfg := aws.Config{
			Region:      s3cfg.Region,
			Credentials: awscreds.NewStaticCredentialsProvider(s3cfg.AccessKey, s3cfg.SecretKey, ""),
		}
		a.s3Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if s3cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(s3cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
		a.s3Bucket = s3cfg.Bucket
		log.Info().Str("bucket", s3cfg.Bucket).Msg("S3 media mirror enabled")
	}
	return a
}

// ArchivePending downloads every inbound image or document attachment in the
// archival window that has no stored binary yet. Failures are logged and
// retried on the next run. Returns how many attachments were archived.
func (a *Archiver) ArchivePending() int {
	now := a.clock.Now()
	var pending []models.Message
	err := a.db.Preload("Archive").
		Where("direction = ?", models.DirectionInbound).
		Where("attachment_type IN ?", []string{models.AttachmentImage, models.AttachmentDocument}).
		Where("attachment_url <> ''").
		Where("timestamp BETWEEN ? AND ?", now.Add(-archiveMaxAge), now.Add(-archiveMinAge)).
		Find(&pending).Error
	if err != nil {
		log.Error().Err(err).Msg("Could not query pending attachments")
		return 0
	}

	archived := 0
	for i := range pending {
		msg := &pending[i]
		if msg.Archive != nil {
			continue
		}
		if err := a.archiveOne(msg); err != nil {
			log.Error().Err(err).Uint("messageID", msg.ID).Msg("Attachment archival failed, will retry")
			continue
		}
		archived++
	}
	if archived > 0 {
		log.Info().Int("archived", archived).Msg("Attachments archived")
	}
	return archived
}

func (a *Archiver) archiveOne(msg *models.Message) error {
	data, mime, err := a.fetch(msg.AttachmentURL)
	if err != nil {
		return err
	}
	if msg.AttachmentType == models.AttachmentImage {
		data, mime = downscaleImage(data, mime)
	}

	att := models.MessageAttachment{
		MessageID: msg.ID,
		Filename:  filepath.Base(strings.SplitN(msg.AttachmentURL, "?", 2)[0]),
		MimeType:  mime,
		Data:      data,
	}
	// The unique index on message_id makes concurrent archival idempotent.
	if err := a.db.Create(&att).Error; err != nil {
		return fmt.Errorf("store attachment for message %d: %w", msg.ID, err)
	}
	a.mirror(&att)
	return nil
}

// fetch retrieves the attachment bytes, handling both HTTP and data: URLs.
func (a *Archiver) fetch(rawURL string) ([]byte, string, error) {
	if strings.HasPrefix(rawURL, "data:") {
		du, err := dataurl.DecodeString(rawURL)
		if err != nil {
			return nil, "", fmt.Errorf("decode data url: %w", err)
		}
		return du.Data, du.MediaType.ContentType(), nil
	}
	resp, err := a.httpClient.R().Get(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("download attachment: %w", err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("download attachment: status %s", resp.Status())
	}
	mime := resp.Header().Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}
	return resp.Body(), mime, nil
}

func (a *Archiver) mirror(att *models.MessageAttachment) {
	if a.s3Client == nil {
		return
	}
	key := fmt.Sprintf("attachments/%d/%s", att.MessageID, att.Filename)
	_, err := a.s3Client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(a.s3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(att.Data),
		ContentType: aws.String(att.MimeType),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("S3 mirror upload failed")
		return
	}
	log.Debug().Str("key", key).Msg("Attachment mirrored to S3")
}

// downscaleImage re-encodes oversized images as JPEG within the dimension
// cap. Undecodable or already small images pass through untouched.
func downscaleImage(data []byte, mime string) ([]byte, string) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, mime
	}
	bounds := img.Bounds()
	if bounds.Dx() <= maxImageDimension && bounds.Dy() <= maxImageDimension {
		return data, mime
	}
	var resized image.Image
	if bounds.Dx() >= bounds.Dy() {
		resized = resize.Resize(maxImageDimension, 0, img, resize.Lanczos3)
	} else {
		resized = resize.Resize(0, maxImageDimension, img, resize.Lanczos3)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return data, mime
	}
	return buf.Bytes(), "image/jpeg"
}

// PDFRenderer rasterizes PDF pages using the poppler pdftoppm binary.
// A host without poppler is fine; rendering then reports unavailable.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer { return &PDFRenderer{} }

// FirstPageAsPNG renders page one of the PDF to PNG bytes.
func (r *PDFRenderer) FirstPageAsPNG(pdf []byte) ([]byte, error) {
	bin, err := exec.LookPath("pdftoppm")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm not installed")
	}

	dir, err := os.MkdirTemp("", "pdfpage")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(src, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	out := filepath.Join(dir, "page")
	cmd := exec.Command(bin, "-png", "-f", "1", "-l", "1", "-singlefile", src, out)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, output)
	}

	png, err := os.ReadFile(out + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}
	return png, nil
}
