package gallery

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/imagegallery/service/internal/response"
)

// multipartOverhead is the slack allowed on top of MaxUploadSize for
// multipart boundaries and part headers.
const multipartOverhead = 1 << 20

// Handler holds HTTP handlers for gallery endpoints.
type Handler struct {
	svc *Service
	log *zap.Logger
}

// NewHandler creates a new gallery Handler.
func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts the gallery routes. Keys contain a slash, so every
// key-addressed route captures the full remainder of the path.
func (h *Handler) Register(r chi.Router) {
	r.Post("/upload", h.Upload)
	r.Get("/images", h.List)
	r.Get(ServePath+"*", h.Serve)
	r.Delete("/images/*", h.Delete)
}

type uploadData struct {
	Message  string `json:"message"  example:"Upload successful"`
	FileName string `json:"fileName" example:"uploads/1718000000000-483920117.png"`
	URL      string `json:"url"      example:"/image/uploads/1718000000000-483920117.png"`
}

// Upload godoc
//
//	@Summary		Upload an image
//	@Description	Stores one image (max 5 MiB, image/* only) under a fresh key.
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			image	formData	file	true	"Image file"
//	@Success		200		{object}	uploadData
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+multipartOverhead)

	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, newError(PayloadTooLarge, "File too large", err))
			return
		}
		h.fail(w, r, newError(InvalidInput, "No file uploaded", err))
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	res, err := h.svc.Upload(r.Context(), &UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.OK(w, uploadData{Message: "Upload successful", FileName: res.Key, URL: res.URL})
}

// List godoc
//
//	@Summary		List images
//	@Description	Returns every stored image, newest first.
//	@Tags			images
//	@Produce		json
//	@Success		200	{array}		Image
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/images [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	images, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, images)
}

// Serve godoc
//
//	@Summary		Fetch image bytes
//	@Description	Streams a stored image. Keys contain a slash and are taken from the rest of the path.
//	@Tags			images
//	@Produce		image/png,image/jpeg,image/gif,image/webp
//	@Param			key	path		string	true	"Image key, e.g. uploads/1718000000000-483920117.png"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/image/{key} [get]
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	obj, err := h.svc.Open(r.Context(), keyParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer obj.Body.Close()

	// Read the first chunk before committing headers so an immediate store
	// failure can still become a 500.
	buf := make([]byte, 32<<10)
	n, readErr := io.ReadFull(obj.Body, buf)
	if readErr != nil && !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
		h.fail(w, r, newError(StorageReadFailed, "Failed to read image", readErr))
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(CacheMaxAge.Seconds())))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf[:n]); err != nil {
		return
	}
	if readErr != nil {
		return
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		// Headers are gone; drop the connection so the client sees truncation.
		h.log.Warn("image stream aborted", zap.String("key", obj.Key), zap.Error(err))
		panic(http.ErrAbortHandler)
	}
}

// Delete godoc
//
//	@Summary		Delete an image
//	@Description	Removes a stored image. Deleting a missing key fails.
//	@Tags			images
//	@Produce		json
//	@Param			key	path		string	true	"Image key, e.g. uploads/1718000000000-483920117.png"
//	@Success		200	{object}	response.MessageBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/images/{key} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), keyParam(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	response.Message(w, "Image deleted successfully")
}

// fail logs err and writes the matching status with the client-facing message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ge *Error
	if !errors.As(err, &ge) {
		h.log.Error("unclassified error", zap.String("path", r.URL.Path), zap.Error(err))
		response.InternalError(w)
		return
	}
	status := ge.Kind.Status()
	fields := []zap.Field{zap.String("kind", ge.Kind.String()), zap.String("path", r.URL.Path), zap.Error(ge.Err)}
	if status >= http.StatusInternalServerError {
		h.log.Error(ge.Message, fields...)
	} else {
		h.log.Debug(ge.Message, fields...)
	}
	response.Error(w, status, ge.Message)
}

// keyParam reassembles the object key from the wildcard segment. chi matches
// on the raw path when it is set, so escaped keys are decoded here.
func keyParam(r *http.Request) string {
	key := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return key
	}
	if decoded, err := url.PathUnescape(key); err == nil {
		return decoded
	}
	return key
}
