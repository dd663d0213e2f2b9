package pdfparse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extract renders a PDF byte stream to linear text, pages separated by
// newlines. The layout-aware engine runs first; the page-stream engine is
// tried only when the first yields nothing. The pdf library panics on
// some malformed documents, so each engine runs behind a recover and a
// panic counts as an empty result. Bytes that cannot be opened as a PDF
// fail with ErrInvalidFile; a document that opens but yields no text
// fails with ErrExtractionEmpty.
func Extract(ctx context.Context, data []byte) (string, error) {
	text, err := layoutText(ctx, data)
	if err != nil || strings.TrimSpace(text) == "" {
		text, err = streamText(ctx, data)
		if err != nil || strings.TrimSpace(text) == "" {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if errors.Is(err, ErrInvalidFile) {
				return "", err
			}
			return "", ErrExtractionEmpty
		}
	}
	return text, nil
}

func layoutText(ctx context.Context, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("layout extraction: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("page %d rows: %w", i, err)
		}
		for _, row := range rows {
			for j, word := range row.Content {
				if j > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(word.S)
			}
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

func streamText(ctx context.Context, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stream extraction: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("plain text: %w", err)
	}
	var b bytes.Buffer
	if _, err := io.Copy(&b, r); err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return b.String(), nil
}
