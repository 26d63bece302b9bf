package localfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"
)

func TestSaveCreatesNestedKeys(t *testing.T) {
	st, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := st.Save(ctx, "abc/contract.txt", strings.NewReader("Lease agreement")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rc, err := st.Open(ctx, "abc/contract.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	body, _ := io.ReadAll(rc)
	if string(body) != "Lease agreement" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestOpenMissingKeyIsNotExist(t *testing.T) {
	st, _ := New(t.TempDir())

	_, err := st.Open(context.Background(), "missing/contract.txt")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestRejectsTraversal(t *testing.T) {
	st, _ := New(t.TempDir())

	if err := st.Save(context.Background(), "../escape.txt", strings.NewReader("x")); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
}
