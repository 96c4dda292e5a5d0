package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"actms/internal/uploads"
)

// multipart framing allowance on top of the file size limit
const multipartOverhead = 1 << 20

type uploadResponse struct {
	*uploads.Result
	Message string `json:"message"`
}

// UploadHandler accepts one document in the multipart field "file".
func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.svc.Uploads.MaxSize()+multipartOverhead)
	defer r.Body.Close()

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		default:
			writeError(w, http.StatusBadRequest, "No file provided")
		}
		return
	}
	defer file.Close()

	res, err := h.svc.Uploads.Process(r.Context(), header.Filename, file)
	if errors.Is(err, uploads.ErrRejected) {
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), uploads.ErrRejected.Error()+": "))
		return
	}
	if err != nil {
		h.serverError(w, r, "Failed to store file", err)
		return
	}

	if res.Duplicate {
		h.audit(r, "file_uploaded", fmt.Sprintf("Duplicate of %s uploaded as %s", res.Upload.SavedFilename, header.Filename))
		writeJSON(w, http.StatusOK, uploadResponse{Result: res, Message: "File already uploaded"})
		return
	}
	h.audit(r, "file_uploaded", fmt.Sprintf("File %s uploaded as %s", header.Filename, res.Upload.SavedFilename))
	writeJSON(w, http.StatusCreated, uploadResponse{Result: res, Message: "File uploaded successfully"})
}
