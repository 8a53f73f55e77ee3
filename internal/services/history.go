package services

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"glenda/internal/adapters/claude"
	"glenda/internal/models"
)

// Placeholder texts for media the model cannot see.
const (
	unsupportedImageText = "(unsupported image)"
	pdfSentText          = "(PDF sent)"
)

var inlineImageMimes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var imageURLExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// HistoryBuilder turns a conversation's message log into the model history:
// outbound messages become assistant turns, inbound become user turns,
// consecutive same-role turns merge, and attachments become image blocks or
// placeholders.
type HistoryBuilder struct {
	db  *gorm.DB
	pdf *PDFRenderer
}

func NewHistoryBuilder(db *gorm.DB, pdf *PDFRenderer) *HistoryBuilder {
	return &HistoryBuilder{db: db, pdf: pdf}
}

// Build assembles the history for conv. When every merged turn is a single
// text block, content flattens to a plain string.
func (b *HistoryBuilder) Build(conv *models.Conversation) ([]claude.Message, error) {
	var messages []models.Message
	err := b.db.Preload("Archive").
		Where("conversation_id = ?", conv.ID).
		Order("timestamp, id").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("load messages for conversation %d: %w", conv.ID, err)
	}

	var turns []claude.Message
	for i := range messages {
		msg := &messages[i]
		if !msg.HasContent() {
			continue
		}
		role := claude.RoleUser
		if msg.Direction == models.DirectionOutbound {
			role = claude.RoleAssistant
		}
		blocks := b.blocksFor(msg)
		if len(blocks) == 0 {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Content = append(turns[n-1].Content.([]claude.ContentBlock), blocks...)
			continue
		}
		turns = append(turns, claude.Message{Role: role, Content: blocks})
	}

	flattenIfAllText(turns)
	return turns, nil
}

func (b *HistoryBuilder) blocksFor(msg *models.Message) []claude.ContentBlock {
	var blocks []claude.ContentBlock
	if msg.Body != "" {
		blocks = append(blocks, claude.TextBlock(msg.Body))
	}
	if msg.AttachmentURL == "" {
		return blocks
	}

	switch msg.AttachmentType {
	case models.AttachmentImage:
		blocks = append(blocks, b.imageBlock(msg))
	case models.AttachmentDocument:
		blocks = append(blocks, b.documentBlock(msg))
	default:
		blocks = append(blocks, claude.TextBlock(unsupportedImageText))
	}
	return blocks
}

func (b *HistoryBuilder) imageBlock(msg *models.Message) claude.ContentBlock {
	if msg.Archive != nil {
		if inlineImageMimes[msg.Archive.MimeType] {
			data := base64.StdEncoding.EncodeToString(msg.Archive.Data)
			return claude.ImageBase64Block(msg.Archive.MimeType, data)
		}
		return claude.TextBlock(unsupportedImageText)
	}
	if imageURLExtensions[urlExtension(msg.AttachmentURL)] {
		return claude.ImageURLBlock(msg.AttachmentURL)
	}
	return claude.TextBlock(unsupportedImageText)
}

// documentBlock renders the first page of an archived PDF as an inline
// image. Without the renderer or the binary, a placeholder stands in.
func (b *HistoryBuilder) documentBlock(msg *models.Message) claude.ContentBlock {
	if msg.Archive == nil || msg.Archive.MimeType != "application/pdf" {
		return claude.TextBlock(pdfSentText)
	}
	png, err := b.pdf.FirstPageAsPNG(msg.Archive.Data)
	if err != nil {
		log.Debug().Err(err).Uint("messageID", msg.ID).Msg("PDF page render unavailable, using placeholder")
		return claude.TextBlock(pdfSentText)
	}
	return claude.ImageBase64Block("image/png", base64.StdEncoding.EncodeToString(png))
}

// flattenIfAllText rewrites every turn's content to a plain string when all
// turns carry exactly one text block.
func flattenIfAllText(turns []claude.Message) {
	for _, t := range turns {
		blocks := t.Content.([]claude.ContentBlock)
		if len(blocks) != 1 || blocks[0].Type != "text" {
			return
		}
	}
	for i := range turns {
		turns[i].Content = turns[i].Content.([]claude.ContentBlock)[0].Text
	}
}

func urlExtension(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(path.Ext(raw))
	}
	return strings.ToLower(path.Ext(u.Path))
}
