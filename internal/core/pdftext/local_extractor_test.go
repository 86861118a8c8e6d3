package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/markdave123-py/pagetext/internal/core"
)

// buildPDF renders a minimal uncompressed PDF with one text line per page.
func buildPDF(pages []string) []byte {
	var objs []string
	n := len(pages)
	fontID := 3 + 2*n

	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
	)
	for i := range pages {
		objs = append(objs, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			fontID, 3+n+i))
	}
	for _, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}
	objs = append(objs, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		ct   string
		data []byte
		want bool
	}{
		{"application/pdf", nil, true},
		{"Application/PDF; charset=binary", nil, true},
		{"", []byte("%PDF-1.7\n..."), true},
		{"text/plain", []byte("hello"), false},
	}
	for _, tt := range tests {
		if got := IsPDF(tt.ct, tt.data); got != tt.want {
			t.Errorf("IsPDF(%q, %q) = %v, want %v", tt.ct, tt.data, got, tt.want)
		}
	}
}

func TestCountPages(t *testing.T) {
	n, err := CountPages(buildPDF([]string{"one", "two", "three"}))
	if err != nil {
		t.Fatalf("CountPages: %v", err)
	}
	if n != 3 {
		t.Fatalf("pages=%d want 3", n)
	}
}

func TestCountPages_Garbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not a pdf"), []byte("%PDF-1.4\ntruncated")} {
		if _, err := CountPages(data); err == nil {
			t.Errorf("CountPages(%q) expected error", data)
		}
	}
}

func TestLocalBackend_PDFRanges(t *testing.T) {
	doc := &core.Document{Name: "doc.pdf", ContentType: "application/pdf", Data: buildPDF([]string{"Alpha", "Beta", "Gamma"})}
	ext, err := NewLocalBackend(nil).Prepare(context.Background(), doc)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	got, err := ext.ExtractPages(context.Background(), core.PageRange{Index: 0, Start: 1, End: 2})
	if err != nil {
		t.Fatalf("ExtractPages: %v", err)
	}
	if !strings.Contains(got, "Alpha") || !strings.Contains(got, "Beta") || strings.Contains(got, "Gamma") {
		t.Fatalf("pages 1-2 = %q", got)
	}

	past, err := ext.ExtractPages(context.Background(), core.PageRange{Index: 1, Start: 4, End: 6})
	if err != nil {
		t.Fatalf("ExtractPages past end: %v", err)
	}
	if past != "" {
		t.Fatalf("pages past the end returned %q", past)
	}
}

func TestLocalBackend_CancelledContext(t *testing.T) {
	doc := &core.Document{Name: "doc.pdf", ContentType: "application/pdf", Data: buildPDF([]string{"Alpha"})}
	ext, err := NewLocalBackend(nil).Prepare(context.Background(), doc)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ext.ExtractPages(ctx, core.PageRange{Start: 1, End: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

func TestLocalBackend_MalformedPDFIsPermanent(t *testing.T) {
	doc := &core.Document{Name: "bad.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4\nnonsense")}
	_, err := NewLocalBackend(nil).Prepare(context.Background(), doc)
	if core.KindOf(err) != core.KindPermanent || err == nil {
		t.Fatalf("err=%v kind=%v want permanent", err, core.KindOf(err))
	}
}

func TestSinglePage(t *testing.T) {
	s := singlePage("  body text \n")
	if got, _ := s.ExtractPages(context.Background(), core.PageRange{Start: 1, End: 5}); got != "body text" {
		t.Fatalf("first range = %q", got)
	}
	if got, _ := s.ExtractPages(context.Background(), core.PageRange{Start: 6, End: 10}); got != "" {
		t.Fatalf("later range = %q", got)
	}
}
