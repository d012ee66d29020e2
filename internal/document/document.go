// Package document validates uploaded research-paper PDFs and extracts
// their plain text for diagnostics and storage. The binary payload itself
// is what the pipeline attaches to generation calls; the extracted text is
// never mutated after load.
package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MIMETypePDF is the only payload type the pipeline accepts.
const MIMETypePDF = "application/pdf"

// Document is an immutable input payload for one analysis run.
type Document struct {
	Filename string
	MIMEType string
	Data     []byte

	// Text is the extracted plain text, whitespace-normalized and capped
	// at the configured context limit. May be empty for scanned PDFs.
	Text string

	// Pages is the page count reported by the PDF reader.
	Pages int
}

// Load reads and validates a PDF from disk.
func Load(path string, maxContextChars int) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return FromBytes(data, filepath.Base(path), maxContextChars)
}

// FromBytes validates a PDF payload and extracts its text.
// Rejects empty payloads, payloads without a PDF header, and PDFs with
// zero pages.
func FromBytes(data []byte, filename string, maxContextChars int) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("the uploaded file is empty")
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("the file is not a valid PDF")
	}

	pages, text, err := extractText(data)
	if err != nil {
		return nil, fmt.Errorf("the file appears to be corrupted or is not a valid PDF: %w", err)
	}
	if pages == 0 {
		return nil, fmt.Errorf("the PDF contains no pages")
	}

	text = normalize(text)
	if maxContextChars > 0 && len(text) > maxContextChars {
		text = text[:maxContextChars]
	}

	return &Document{
		Filename: filename,
		MIMEType: MIMETypePDF,
		Data:     data,
		Text:     text,
		Pages:    pages,
	}, nil
}

// extractText reads the page count and plain text from a PDF payload.
// The reader panics on some malformed cross-reference tables, so the
// panic is converted to an error here.
func extractText(data []byte) (pages int, text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, "", err
	}

	pages = reader.NumPage()

	plain, err := reader.GetPlainText()
	if err != nil {
		// Text extraction failure is not fatal: image-only PDFs still
		// analyze fine because the pipeline attaches the raw payload.
		return pages, "", nil
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return pages, "", nil
	}

	return pages, string(raw), nil
}

func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
