package osfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestCreateWriteAndOpenRoundTrip(t *testing.T) {
	fs := NewMem()
	ctx := context.Background()

	if err := fs.MkdirAll(ctx, "/repos/widgets"); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	w, err := fs.Create(ctx, "/repos/widgets/HEAD")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := io.Copy(w, strings.NewReader("ref: refs/heads/main\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := fs.Open(ctx, "/repos/widgets/HEAD")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "ref: refs/heads/main\n" {
		t.Errorf("unexpected contents: %q", data)
	}
}

func TestExistsAndRemoveAll(t *testing.T) {
	fs := NewMem()
	ctx := context.Background()
	_ = fs.MkdirAll(ctx, "/repos/widgets")

	ok, err := fs.Exists(ctx, "/repos/widgets")
	if err != nil || !ok {
		t.Fatalf("expected dir to exist, ok=%v err=%v", ok, err)
	}

	if err := fs.RemoveAll(ctx, "/repos/widgets"); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	ok, err = fs.Exists(ctx, "/repos/widgets")
	if err != nil || ok {
		t.Fatalf("expected dir removed, ok=%v err=%v", ok, err)
	}
}

func TestStatReportsSizeAndIsDir(t *testing.T) {
	fs := NewMem()
	ctx := context.Background()
	w, _ := fs.Create(ctx, "/file.txt")
	_, _ = w.Write([]byte("hello"))
	_ = w.Close()

	info, err := fs.Stat(ctx, "/file.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != 5 || info.IsDir {
		t.Errorf("unexpected file info: %+v", info)
	}
}

func TestDiskUsageSumsFileSizes(t *testing.T) {
	fs := NewMem()
	ctx := context.Background()
	_ = fs.MkdirAll(ctx, "/repos/widgets")
	w1, _ := fs.Create(ctx, "/repos/widgets/a.txt")
	_, _ = w1.Write([]byte("12345"))
	_ = w1.Close()
	w2, _ := fs.Create(ctx, "/repos/widgets/b.txt")
	_, _ = w2.Write([]byte("1234567890"))
	_ = w2.Close()

	usage, err := fs.DiskUsage(ctx, "/repos/widgets")
	if err != nil {
		t.Fatalf("DiskUsage: %v", err)
	}
	if usage != 15 {
		t.Errorf("expected 15 bytes, got %d", usage)
	}
}

func TestReadDirListsEntries(t *testing.T) {
	fs := NewMem()
	ctx := context.Background()
	_ = fs.MkdirAll(ctx, "/repos/widgets")
	w, _ := fs.Create(ctx, "/repos/widgets/a.txt")
	_ = w.Close()

	entries, err := fs.ReadDir(ctx, "/repos/widgets")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}
