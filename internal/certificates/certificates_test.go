package certificates

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/progression-backend/internal/platform/logger"
)

func TestRenderProducesPNG(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	out, err := r.Render(CertificateData{
		ActorID:     "6f1c1f5e-0000-4000-8000-000000000001",
		BadgeID:     "sales_foundations",
		BadgeName:   "Sales Foundations Certificate",
		Description: "Complete the sales foundations track.",
		IssuedAt:    time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != Width || b.Dy() != Height {
		t.Fatalf("size: want=%dx%d got=%dx%d", Width, Height, b.Dx(), b.Dy())
	}
}

func TestRenderRequiresBadgeName(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	if _, err := r.Render(CertificateData{ActorID: "a"}); err == nil {
		t.Fatalf("expected error for missing badge name")
	}
}

func TestLocalStorePut(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	url, err := s.Put(context.Background(), ObjectKey("actor", "cert"), []byte("png"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "/certificates/actor/cert.png") {
		t.Fatalf("url: got=%q", url)
	}
	got, err := os.ReadFile(strings.TrimPrefix(url, "file://"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "png" {
		t.Fatalf("content: got=%q", got)
	}
	if _, err := s.Put(context.Background(), "../escape.png", nil); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
}

func TestIssuerIssue(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	iss := NewIssuer(logger.Nop(), r, s)
	url, err := iss.Issue(context.Background(), CertificateData{ActorID: "actor", BadgeID: "cert", BadgeName: "Cert"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !strings.HasSuffix(url, "cert.png") {
		t.Fatalf("url: got=%q", url)
	}
}

func TestPublicURL(t *testing.T) {
	if got := publicURL("", "certs", "a/b.png"); got != "https://storage.googleapis.com/certs/a/b.png" {
		t.Fatalf("default: got=%q", got)
	}
	if got := publicURL("http://localhost:4443", "certs", "a/b.png"); got != "http://localhost:4443/certs/a/b.png" {
		t.Fatalf("override: got=%q", got)
	}
}
