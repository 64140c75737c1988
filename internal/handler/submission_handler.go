package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/apperr"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/models"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/service"
)

// FileField is the multipart field carrying the submission document.
const FileField = "pdfFile"

// formOverhead is allowed on top of the file limit for the text fields.
const formOverhead = 1 << 20

type SubmissionHandler struct {
	svc      *service.SubmissionService
	maxBytes int64
}

func NewSubmissionHandler(svc *service.SubmissionService, maxUploadBytes int64) *SubmissionHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = models.MaxUploadBytes
	}
	return &SubmissionHandler{svc: svc, maxBytes: maxUploadBytes}
}

func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	fields := models.ParseFieldList(r.URL.Query().Get("fields"))
	docs, err := h.svc.List(r.Context(), fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeList(w, docs)
}

func (h *SubmissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formOverhead)

	fields, file, err := h.parseRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	sub, err := h.svc.Create(r.Context(), fields, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, "Form submitted successfully", sub)
}

// parseRequest accepts multipart, urlencoded or JSON bodies.
func (h *SubmissionHandler) parseRequest(r *http.Request) (map[string]string, *service.UploadFile, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mt {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, nil, h.bodyError(err, "Invalid multipart form")
		}
		fields := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
		file, err := readUpload(r)
		if err != nil {
			return nil, nil, h.bodyError(err, "Failed to read uploaded file")
		}
		return fields, file, nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, nil, h.bodyError(err, "Invalid form body")
		}
		fields := map[string]string{}
		for k, v := range r.PostForm {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
		return fields, nil, nil
	}

	var body map[string]any
	if err := readJSON(r, &body); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]string{}, nil, nil
		}
		return nil, nil, h.bodyError(err, "Invalid request body")
	}
	return stringify(body), nil, nil
}

func (h *SubmissionHandler) bodyError(err error, msg string) error {
	if tooLarge(err) {
		return apperr.Validationf("File size exceeds %dMB limit", h.maxBytes>>20)
	}
	return apperr.Validation(msg)
}

// readUpload returns the pdfFile part, or nil when none was sent.
func readUpload(r *http.Request) (*service.UploadFile, error) {
	f, fh, err := r.FormFile(FileField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &service.UploadFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// stringify flattens scalar JSON values to their form representation.
func stringify(body map[string]any) map[string]string {
	out := make(map[string]string, len(body))
	for k, v := range body {
		switch t := v.(type) {
		case string:
			out[k] = t
		case bool:
			out[k] = strconv.FormatBool(t)
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return out
}
