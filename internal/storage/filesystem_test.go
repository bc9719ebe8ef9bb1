package storage

import (
	"context"
	"testing"
)

func TestFileStorePutGet(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	ref, err := store.Put(ctx, "results/job-1/result-01.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ref != "results/job-1/result-01.png" {
		t.Fatalf("ref = %q", ref)
	}

	data, err := store.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("data = %q", data)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Put(context.Background(), "../escape.png", []byte("x")); err == nil {
		t.Fatal("traversal key accepted")
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "plain", key: "a/b.png", want: "a/b.png"},
		{name: "leading slash", key: "/a/b.png", want: "a/b.png"},
		{name: "dot prefix", key: "./a/b.png", want: "a/b.png"},
		{name: "backslashes", key: "a\\b.png", want: "a/b.png"},
		{name: "empty", key: "  ", wantErr: true},
		{name: "parent escape", key: "../x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sanitizeKey(tt.key)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("sanitizeKey(%q) accepted", tt.key)
				}
				return
			}
			if err != nil {
				t.Fatalf("sanitizeKey(%q): %v", tt.key, err)
			}
			if got != tt.want {
				t.Fatalf("sanitizeKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
