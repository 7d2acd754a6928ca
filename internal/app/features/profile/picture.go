package profile

import (
	"context"
	"errors"
	"io"
	"net/http"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/system/profilerules"
	"github.com/dalemusser/civichub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.uber.org/zap"
)

// multipartOverhead leaves room for boundaries and headers around the file.
const multipartOverhead = 64 << 10

// HandlePicture handles POST /api/profile/picture (multipart field
// "picture"). Nothing is uploaded unless the file passes validation.
func (h *Handler) HandlePicture(w http.ResponseWriter, r *http.Request) {
	if h.Blobs == nil {
		uierrors.Write(w, http.StatusServiceUnavailable, "picture uploads are not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, profilerules.MaxPictureBytes+multipartOverhead)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			uierrors.Validation(w, profilerules.ErrPictureTooBig.Error(), []string{"picture"})
			return
		}
		h.ErrLog.LogBadRequest(w, r, "parse multipart", err, "invalid upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("picture")
	if err != nil {
		uierrors.Validation(w, "a picture file is required", []string{"picture"})
		return
	}
	defer file.Close()

	// The stored type comes from the file's own bytes.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		h.ErrLog.LogBadRequest(w, r, "read upload", err, "invalid upload")
		return
	}
	contentType, ext, err := profilerules.ValidatePicture(head[:n], header.Size)
	if err != nil {
		uierrors.Validation(w, err.Error(), []string{"picture"})
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.ErrLog.LogServerError(w, r, "rewind upload", err, "failed to store picture")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	uid := userID(r)
	key := profilerules.PictureKey(uid.Hex(), ext)
	err = h.Blobs.Put(ctx, key, file, &storage.PutOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=300",
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "store profile picture", err, "failed to store picture")
		return
	}
	if !h.storeErr(w, r, h.Users.SetProfilePicture(ctx, uid, h.Blobs.URL(key)), "picture") {
		return
	}
	h.removeStalePictures(ctx, uid.Hex(), ext)
	h.AuditLog.PictureUploaded(ctx, r, uid, key, header.Size)
	h.respond(ctx, w, r)
}

// removeStalePictures deletes the user's pictures stored under other
// extensions. Failures only leave an orphaned object behind.
func (h *Handler) removeStalePictures(ctx context.Context, userHex, keep string) {
	for _, ext := range profilerules.PictureExtensions() {
		if ext == keep {
			continue
		}
		key := profilerules.PictureKey(userHex, ext)
		if err := h.Blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.Log.Warn("delete stale profile picture", zap.String("key", key), zap.Error(err))
		}
	}
}
