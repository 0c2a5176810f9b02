package extractor

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"code.sajari.com/docconv"
)

// DocconvPDFParser reads the PDF text layer with docconv (poppler tools)
type DocconvPDFParser struct{}

// NewDocconvPDFParser creates a docconv backed PDF parser
func NewDocconvPDFParser() *DocconvPDFParser {
	return &DocconvPDFParser{}
}

// Parse returns the document text and its page count
func (p *DocconvPDFParser) Parse(ctx context.Context, data []byte) (*PDFText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, meta, err := docconv.ConvertPDF(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	pages, _ := strconv.Atoi(strings.TrimSpace(meta["Pages"]))
	return &PDFText{Text: body, Pages: pages}, nil
}
