package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"numainda/pkg/domain"
)

func TestMemoryStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Put(ctx, "uploads/a.pdf", strings.NewReader("%PDF-1.4"), 8, "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, err := s.Get(ctx, "uploads/a.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "%PDF-1.4" {
		t.Fatalf("data = %q", data)
	}
	if url, err := s.PresignGet(ctx, "uploads/a.pdf", time.Minute); err != nil || url == "" {
		t.Fatalf("presign: %q %v", url, err)
	}
	if err := s.Delete(ctx, "uploads/a.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "uploads/a.pdf"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewMinioStoreRequiresEndpoint(t *testing.T) {
	if _, err := NewMinioStore(MinioConfig{Bucket: "uploads"}); err == nil {
		t.Fatalf("expected error without endpoint")
	}
}
