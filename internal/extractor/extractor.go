package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MinRecognizedChars is the least amount of OCR or PDF text treated as usable
const MinRecognizedChars = 20

// WordNotSupportedMessage is returned in place of text for Word documents
const WordNotSupportedMessage = "Word document processing is not yet supported. " +
	"Please convert your document to PDF format and upload it again for a full analysis."

// Word processor MIME types
const (
	MimeMSWord = "application/msword"
	MimeDocx   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePDF    = "application/pdf"
	MimeText   = "text/plain"
)

// OCRProvider recognizes text in an image and returns one block per parsed result
type OCRProvider interface {
	Recognize(ctx context.Context, data []byte, fileName, language string) ([]string, error)
}

// PDFText is the text layer of a PDF document
type PDFText struct {
	Text  string
	Pages int
}

// PDFParser reads the text layer of a PDF document
type PDFParser interface {
	Parse(ctx context.Context, data []byte) (*PDFText, error)
}

// Extractor turns uploaded bytes into plain text, branching on the declared type
type Extractor struct {
	ocr    OCRProvider
	pdf    PDFParser
	logger *slog.Logger
}

// New creates a text extractor backed by the given OCR provider and PDF parser
func New(ocr OCRProvider, pdf PDFParser, logger *slog.Logger) *Extractor {
	return &Extractor{ocr: ocr, pdf: pdf, logger: logger}
}

// Extract returns the text content of a file or an *ExtractionError
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType, fileName string) (string, error) {
	mime := normalizeMime(mimeType)
	ext := strings.ToLower(filepath.Ext(fileName))

	switch {
	case mime == MimeText || ext == ".txt":
		return cleanText(string(data)), nil

	case strings.HasPrefix(mime, "image/"):
		return e.extractImage(ctx, data, fileName)

	case mime == MimePDF:
		return e.extractPDF(ctx, data, fileName)

	case mime == MimeMSWord || mime == MimeDocx || ext == ".doc" || ext == ".docx":
		e.logger.Info("📄 [Extractor] Word document received, returning conversion notice",
			"file_name", fileName,
		)
		return WordNotSupportedMessage, nil

	default:
		return "", &ExtractionError{Reason: "unsupported file type"}
	}
}

func (e *Extractor) extractImage(ctx context.Context, data []byte, fileName string) (string, error) {
	if e.ocr == nil {
		return "", &ExtractionError{Reason: "image text recognition is not configured"}
	}

	blocks, err := e.ocr.Recognize(ctx, data, fileName, "eng")
	if err != nil {
		e.logger.Warn("⚠️ [Extractor] OCR failed", "file_name", fileName, "error", err)
		return "", &ExtractionError{Reason: "could not read text from image", Err: err}
	}
	if len(blocks) == 0 {
		return "", &ExtractionError{Reason: "no text found in image"}
	}

	text := cleanText(strings.Join(blocks, "\n"))
	if tooShort(text) {
		return "", &ExtractionError{Reason: "no usable text found in image"}
	}

	e.logger.Debug("🔎 [Extractor] OCR completed",
		"file_name", fileName,
		"blocks", len(blocks),
		"chars", utf8.RuneCountInString(text),
	)
	return text, nil
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte, fileName string) (string, error) {
	if e.pdf == nil {
		return "", &ExtractionError{Reason: "PDF parsing is not configured"}
	}

	parsed, err := e.pdf.Parse(ctx, data)
	if err != nil {
		e.logger.Warn("⚠️ [Extractor] PDF parse failed", "file_name", fileName, "error", err)
		return "", &ExtractionError{Reason: "could not read PDF document", Err: err}
	}
	text := cleanText(parsed.Text)
	if tooShort(text) {
		return "", &ExtractionError{Reason: "PDF has no readable text layer, it may be a scanned image"}
	}

	e.logger.Debug("📑 [Extractor] PDF parsed",
		"file_name", fileName,
		"pages", parsed.Pages,
		"chars", utf8.RuneCountInString(text),
	)
	return text, nil
}

// cleanText makes extracted text storable as TEXT: invalid UTF-8 sequences
// become U+FFFD and NUL bytes are dropped.
func cleanText(text string) string {
	text = strings.ToValidUTF8(text, "\uFFFD")
	return strings.ReplaceAll(text, "\x00", "")
}

func tooShort(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) < MinRecognizedChars
}

func normalizeMime(mimeType string) string {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}

// ExtractionError reports that a file's content could not be turned into text
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return "extraction failed: " + e.Reason
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
