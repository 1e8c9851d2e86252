package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3Object struct {
	body        []byte
	contentType string
	meta        http.Header
	modified    time.Time
}

// fakeS3 is an in-process S3 endpoint that handles the path-style subset of
// the API used by S3Storage.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeS3Object
}

func newTestS3Storage(t *testing.T) (*S3Storage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string]fakeS3Object)}
	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		Credentials:                credentials.NewStaticCredentialsProvider("AKIA", "SECRET", ""),
		HTTPClient:                 &http.Client{Transport: fake},
		UsePathStyle:               true,
		BaseEndpoint:               aws.String("https://mock.s3.local"),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	return newS3Storage(client, "gallery"), fake
}

func emptyResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return f.list(req.URL.Query().Get("prefix")), nil
	}

	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			body = decodeAWSChunked(body)
		}
		meta := http.Header{}
		for k, v := range req.Header {
			if strings.HasPrefix(strings.ToLower(k), "x-amz-meta-") {
				meta[k] = v
			}
		}
		f.objects[key] = fakeS3Object{
			body:        body,
			contentType: req.Header.Get("Content-Type"),
			meta:        meta,
			modified:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		resp := emptyResponse(http.StatusOK)
		resp.Header.Set("ETag", `"etag"`)
		return resp, nil
	case http.MethodHead, http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			return emptyResponse(http.StatusNotFound), nil
		}
		resp := emptyResponse(http.StatusOK)
		resp.Header.Set("Content-Length", strconv.Itoa(len(obj.body)))
		resp.Header.Set("Content-Type", obj.contentType)
		resp.Header.Set("Last-Modified", obj.modified.Format(http.TimeFormat))
		resp.Header.Set("ETag", `"etag"`)
		for k, v := range obj.meta {
			resp.Header[k] = v
		}
		if req.Method == http.MethodGet {
			resp.Body = io.NopCloser(bytes.NewReader(obj.body))
			resp.ContentLength = int64(len(obj.body))
		}
		return resp, nil
	case http.MethodDelete:
		delete(f.objects, key)
		return emptyResponse(http.StatusNoContent), nil
	}
	return emptyResponse(http.StatusNotImplemented), nil
}

func (f *fakeS3) list(prefix string) *http.Response {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
	for _, k := range keys {
		obj := f.objects[k]
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>%s</LastModified></Contents>",
			k, len(obj.body), obj.modified.Format(time.RFC3339))
	}
	b.WriteString("</ListBucketResult>")
	resp := emptyResponse(http.StatusOK)
	resp.Header.Set("Content-Type", "application/xml")
	resp.Body = io.NopCloser(strings.NewReader(b.String()))
	return resp
}

// decodeAWSChunked strips aws-chunked framing: <hex>[;ext]\r\n<data>\r\n ... 0\r\n.
func decodeAWSChunked(b []byte) []byte {
	var out []byte
	rest := b
	for {
		line, tail, ok := bytes.Cut(rest, []byte("\r\n"))
		if !ok {
			return out
		}
		sizeHex, _, _ := bytes.Cut(line, []byte(";"))
		n, err := strconv.ParseInt(string(sizeHex), 16, 64)
		if err != nil || n == 0 || int64(len(tail)) < n {
			return out
		}
		out = append(out, tail[:n]...)
		rest = bytes.TrimPrefix(tail[n:], []byte("\r\n"))
	}
}

func TestS3StorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestS3Storage(t)
	if s.Driver() != DriverS3 {
		t.Fatalf("driver = %s", s.Driver())
	}

	body := []byte("gif-bytes")
	err := s.Upload(ctx, "uploads/1-2.gif", bytes.NewReader(body), int64(len(body)), PutOptions{
		ContentType: "image/gif",
		Metadata:    map[string]string{"original-name": "dance.gif"},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	info, err := s.Stat(ctx, "uploads/1-2.gif")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.ContentType != "image/gif" || info.Size != int64(len(body)) {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Metadata["original-name"] != "dance.gif" {
		t.Fatalf("metadata = %+v", info.Metadata)
	}

	rc, _, err := s.Download(ctx, "uploads/1-2.gif")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(got, body) {
		t.Fatalf("body = %q", got)
	}

	infos, err := s.List(ctx, "uploads/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "uploads/1-2.gif" || infos[0].Created.IsZero() {
		t.Fatalf("unexpected listing %+v", infos)
	}

	if err := s.Delete(ctx, "uploads/1-2.gif"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, err := s.Exists(ctx, "uploads/1-2.gif"); err != nil || ok {
		t.Fatalf("exists after delete = %v, %v", ok, err)
	}
}

func TestS3StorageMissingKey(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestS3Storage(t)
	if _, err := s.Stat(ctx, "uploads/none.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stat err = %v", err)
	}
	if _, _, err := s.Download(ctx, "uploads/none.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("download err = %v", err)
	}
	if err := s.Delete(ctx, "uploads/none.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete err = %v", err)
	}
}

func TestNewS3StorageRequiresBucket(t *testing.T) {
	if _, err := NewS3Storage(context.Background(), S3Config{}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}
