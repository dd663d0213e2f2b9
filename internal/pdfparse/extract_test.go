package pdfparse

import (
	"context"
	"errors"
	"testing"
)

func TestExtractRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("this is not a pdf")} {
		_, err := Extract(context.Background(), data)
		if !errors.Is(err, ErrInvalidFile) {
			t.Errorf("Extract(%q) = %v, want ErrInvalidFile", data, err)
		}
	}
}

func TestExtractCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Extract(ctx, []byte("x"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Extract = %v, want context.Canceled", err)
	}
}
