// Package parse turns uploaded contract files into page-anchored plain text.
// It validates the declared content type against the accepted formats (PDF,
// plain text, DOCX), enforces the upload size limit, and records the byte
// offset at which every page starts.
package parse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document/parser"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/covenant/pkg/formatting"
)

// Accepted content types.
const (
	MimePDF  = "application/pdf"
	MimeText = "text/plain"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// DefaultMaxSize is the upload limit applied when none is configured.
const DefaultMaxSize int64 = 10 * 1024 * 1024

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum upload size")
	ErrUnreadable          = errors.New("document could not be read")
)

// Document is the extracted text of an upload. Pages holds the starting byte
// offset of each page within Text; the first entry is always 0.
type Document struct {
	Text        string
	Pages       []int
	ContentType string
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// Parser extracts text from uploads.
type Parser struct {
	maxSize int64
	pdf     parser.Parser
	logger  *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithPDFParser replaces the PDF text extractor.
func WithPDFParser(p parser.Parser) Option {
	return func(ps *Parser) {
		ps.pdf = p
	}
}

// New creates a Parser enforcing maxSize bytes per upload.
// A non-positive maxSize applies DefaultMaxSize.
func New(ctx context.Context, maxSize int64, logger *slog.Logger, opts ...Option) (*Parser, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	p := &Parser{
		maxSize: maxSize,
		logger:  logger.With("system", "parse"),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.pdf == nil {
		pp, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: true})
		if err != nil {
			return nil, fmt.Errorf("create pdf parser: %w", err)
		}
		p.pdf = pp
	}

	return p, nil
}

// MaxSize returns the upload limit in bytes.
func (p *Parser) MaxSize() int64 {
	return p.maxSize
}

// Parse validates and extracts the text of an upload.
func (p *Parser) Parse(ctx context.Context, filename, contentType string, data []byte) (*Document, error) {
	if int64(len(data)) > p.maxSize {
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrFileTooLarge, formatting.FormatBytes(int64(len(data)), 1), formatting.FormatBytes(p.maxSize, 1))
	}

	kind, err := Detect(filename, contentType, data)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc *Document
	switch kind {
	case MimePDF:
		doc, err = p.parsePDF(ctx, filename, data)
	case MimeDOCX:
		doc, err = parseDOCX(data, p.maxSize)
	default:
		doc, err = parseText(data)
	}
	if err != nil {
		return nil, err
	}

	doc.ContentType = kind
	return doc, nil
}

// Detect resolves the content type of an upload. A declared type wins when it
// is specific; empty or generic declarations fall back to content sniffing and
// the file extension. Anything outside the accepted set is rejected.
func Detect(filename, declared string, data []byte) (string, error) {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}

	switch declared {
	case MimePDF, MimeText, MimeDOCX:
		return declared, nil
	case "", "application/octet-stream":
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, declared)
	}

	switch {
	case isPDF(data):
		return MimePDF, nil
	case isDOCX(data):
		return MimeDOCX, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return MimePDF, nil
	case ".docx":
		return MimeDOCX, nil
	case ".txt":
		return MimeText, nil
	}

	if strings.HasPrefix(http.DetectContentType(data), "text/plain") && utf8.Valid(data) {
		return MimeText, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, filename)
}

func (p *Parser) parsePDF(ctx context.Context, filename string, data []byte) (*Document, error) {
	count, err := pdfapi.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		p.logger.Warn("failed to read PDF page count", "filename", filename, "error", err)
	}

	docs, err := p.pdf.Parse(ctx, bytes.NewReader(data), parser.WithURI(filename))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	pages := make([]string, 0, len(docs))
	for _, d := range docs {
		pages = append(pages, d.Content)
	}

	if count > 0 && count != len(pages) {
		p.logger.Warn(
			"PDF page count mismatch",
			"filename", filename,
			"declared", count,
			"extracted", len(pages),
		)
	}

	return joinPages(pages), nil
}

func parseText(data []byte) (*Document, error) {
	return joinPages(strings.Split(string(data), "\f")), nil
}

// joinPages concatenates page texts separated by a blank line and records
// where each page starts.
func joinPages(pages []string) *Document {
	var b strings.Builder
	offsets := make([]int, 0, max(len(pages), 1))

	for i, page := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		offsets = append(offsets, b.Len())
		b.WriteString(strings.TrimRight(sanitize(page), " \t\r\n"))
	}
	if len(offsets) == 0 {
		offsets = append(offsets, 0)
	}

	return &Document{
		Text:  b.String(),
		Pages: offsets,
	}
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, " ")
	}
	return s
}

func isPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}
