package handler

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/core/service"
)

// handleUpload handles POST /v1/uploads.
//
// The body is either a multipart form whose "file" part carries the
// artifact, or the raw artifact with its name in the "name" query parameter.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if session == nil {
		WriteError(w, r, domain.ErrSessionInvalid)
		return
	}

	name := r.URL.Query().Get("name")
	var body io.Reader = r.Body

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		part, err := filePart(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		defer part.Close()
		body = part
		if fn := part.FileName(); fn != "" {
			name = fn
		}
	}

	resp, err := h.uploads.Upload(r.Context(), &service.UploadRequest{
		OwnerID: session.PeerID,
		Name:    name,
		Body:    body,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, UploadResponse{URL: resp.URL, Size: resp.Size})
}

// filePart returns the first multipart part named "file".
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, domain.ErrBadRequest.WithDetails("invalid multipart body").WithCause(err)
	}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return nil, domain.ErrMissingArgument.WithDetails(`multipart field "file" is required`)
		}
		if err != nil {
			return nil, domain.ErrBadRequest.WithDetails("invalid multipart body").WithCause(err)
		}
		if p.FormName() == "file" {
			return p, nil
		}
		p.Close()
	}
}

// handleBlob handles GET /v1/blobs/{owner}/{object}.
func (h *Handler) handleBlob(w http.ResponseWriter, r *http.Request) {
	f, err := h.blobs.Open(r.PathValue("owner"), r.PathValue("object"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		WriteError(w, r, domain.FilesystemError(err, false))
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
