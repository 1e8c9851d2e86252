package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestMemoryStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()
	if m.Driver() != DriverMemory {
		t.Fatalf("driver = %s", m.Driver())
	}

	body := []byte("png-bytes")
	err := m.Upload(ctx, "uploads/a.png", bytes.NewReader(body), int64(len(body)), PutOptions{
		ContentType: "image/png",
		Metadata:    map[string]string{"Original-Name": "cat.png"},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	rc, info, err := m.Download(ctx, "uploads/a.png")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(got, body) {
		t.Fatalf("body = %q, want %q", got, body)
	}
	if info.ContentType != "image/png" || info.Size != int64(len(body)) {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Metadata["original-name"] != "cat.png" {
		t.Fatalf("metadata keys not normalised: %+v", info.Metadata)
	}

	info.Metadata["original-name"] = "mutated"
	st, err := m.Stat(ctx, "uploads/a.png")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Metadata["original-name"] != "cat.png" {
		t.Fatal("stat returned shared metadata map")
	}

	ok, err := m.Exists(ctx, "uploads/a.png")
	if err != nil || !ok {
		t.Fatalf("exists = %v, %v", ok, err)
	}
	if err := m.Delete(ctx, "uploads/a.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err = m.Exists(ctx, "uploads/a.png")
	if err != nil || ok {
		t.Fatalf("exists after delete = %v, %v", ok, err)
	}
}

func TestMemoryStorageNotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()
	if _, _, err := m.Download(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("download err = %v", err)
	}
	if _, err := m.Stat(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stat err = %v", err)
	}
	if err := m.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete err = %v", err)
	}
}

func TestMemoryStorageListByPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	for _, k := range []string{"uploads/b.png", "other/x.png", "uploads/a.png"} {
		if err := m.Upload(ctx, k, strings.NewReader("x"), 1, PutOptions{}); err != nil {
			t.Fatalf("upload %s: %v", k, err)
		}
	}
	infos, err := m.List(ctx, "uploads/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "uploads/a.png" || infos[1].Key != "uploads/b.png" {
		t.Fatalf("unexpected listing %+v", infos)
	}
	if !infos[0].Created.Equal(base) {
		t.Fatalf("created = %v", infos[0].Created)
	}
}

func TestMemoryStorageSizeMismatch(t *testing.T) {
	m := NewMemoryStorage()
	err := m.Upload(context.Background(), "k", strings.NewReader("abc"), 10, PutOptions{})
	if err == nil {
		t.Fatal("expected size mismatch error")
	}
	if ok, _ := m.Exists(context.Background(), "k"); ok {
		t.Fatal("object stored despite failed upload")
	}
}

func TestMemoryStorageCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemoryStorage()
	if _, err := m.List(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("list err = %v", err)
	}
}
