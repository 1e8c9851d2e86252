package gallery

import (
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/imagegallery/service/internal/storage"
)

// Image is a gallery entry. It is rebuilt from store metadata on every
// listing and never persisted on its own.
type Image struct {
	Key          string    `json:"key"          example:"uploads/1718000000000-483920117.png"`
	DisplayName  string    `json:"displayName"  example:"1718000000000-483920117.png"`
	OriginalName string    `json:"originalName,omitempty" example:"cat.png"`
	URL          string    `json:"url"          example:"/image/uploads/1718000000000-483920117.png"`
	UploadTime   time.Time `json:"uploadTime"   example:"2026-02-27T14:48:34Z"`
	Size         int64     `json:"size"         example:"10240"`
	ContentType  string    `json:"contentType,omitempty" example:"image/png"`
}

// Object is an open stored image ready to be streamed. The caller closes Body.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// URLFor returns the proxy-serve path for key.
func URLFor(key string) string {
	return ServePath + key
}

func newImage(info storage.ObjectInfo) Image {
	return Image{
		Key:          info.Key,
		DisplayName:  path.Base(info.Key),
		OriginalName: decodeOriginalName(info.Metadata[metaOriginalName]),
		URL:          URLFor(info.Key),
		UploadTime:   info.Created,
		Size:         info.Size,
		ContentType:  info.ContentType,
	}
}

// Original filenames travel as object metadata, which most backends carry in
// HTTP headers, so they are stored query-escaped.
func encodeOriginalName(name string) string {
	return url.QueryEscape(name)
}

func decodeOriginalName(v string) string {
	if v == "" {
		return ""
	}
	name, err := url.QueryUnescape(v)
	if err != nil {
		return v
	}
	return name
}

func isImageKey(key string) bool {
	_, ok := imageExtensions[strings.ToLower(path.Ext(key))]
	return ok
}
