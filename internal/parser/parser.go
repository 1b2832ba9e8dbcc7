package parser

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether an upload looks like a PDF, by name or by content.
func IsPDF(filename string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return bytes.HasPrefix(data, pdfMagic)
}

// ExtractText returns the text of every page concatenated in page order.
// Pages without text are skipped. A document that cannot be read yields an
// empty string rather than an error.
func ExtractText(data []byte) (text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("PDF reader panicked, treating document as empty")
			text = ""
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Warn().Err(err).Msg("Unable to read PDF, treating document as empty")
		return ""
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			log.Debug().Err(err).Int("page", i).Msg("Skipping unreadable page")
			continue
		}
		if pageText == "" {
			continue
		}
		sb.WriteString(pageText)
	}

	log.Debug().Int("pages", numPages).Int("chars", sb.Len()).Msg("Extracted PDF text")
	return sb.String()
}

// ReadPDFFile reads a PDF from disk, rejecting other formats
func ReadPDFFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if !IsPDF(filePath, data) {
		return nil, fmt.Errorf("unsupported file format: %s", filepath.Ext(filePath))
	}
	return data, nil
}
