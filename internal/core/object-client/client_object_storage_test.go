package objectclient

import (
	"context"
	"errors"
	"testing"

	"github.com/markdave123-py/pagetext/internal/core"
)

func TestParseObjectURL(t *testing.T) {
	tests := []struct {
		in          string
		bucket, key string
		ok          bool
	}{
		{"s3://docs/uploads/a.pdf", "docs", "uploads/a.pdf", true},
		{"https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf", "my-bucket", "path/to/file.pdf", true},
		{ObjectURL("b", "eu-west-1", "runs/1/text.txt"), "b", "runs/1/text.txt", true},
		{"s3://docs/", "", "", false},
		{"https://example.com/file.pdf", "", "", false},
		{"/tmp/file.pdf", "", "", false},
		{"file.pdf", "", "", false},
	}
	for _, tt := range tests {
		bucket, key, ok := ParseObjectURL(tt.in)
		if bucket != tt.bucket || key != tt.key || ok != tt.ok {
			t.Errorf("ParseObjectURL(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.in, bucket, key, ok, tt.bucket, tt.key, tt.ok)
		}
	}
}

func TestNewS3Client_RequiresRegion(t *testing.T) {
	if _, err := NewS3Client(context.Background(), Options{Bucket: "b"}, nil); !errors.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("err=%v want ErrInvalidConfig", err)
	}
}
