package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/service"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/storage"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/httputil"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/validator"
)

const maxJSONBody = 1 << 20

// maxMultipartBody leaves room for ten images per request.
const maxMultipartBody = 10*storage.MaxImageSize + maxJSONBody

func writeInvalid(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: message},
	})
}

// decodeJSON decodes and validates the request body into dst, writing a 400
// on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeInvalid(w, "invalid request body: "+err.Error())
		return false
	}
	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

func isMultipart(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(ct, "multipart/")
}

// decodeProductBody reads a product payload sent either as JSON or as a
// multipart form whose "data" field holds the JSON and whose optional
// "imagen" file is the cover image.
func decodeProductBody(w http.ResponseWriter, r *http.Request, dst any) (*service.Upload, bool) {
	if !isMultipart(r) {
		return nil, decodeJSON(w, r, dst)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(storage.MaxImageSize); err != nil {
		writeInvalid(w, "invalid multipart form: "+err.Error())
		return nil, false
	}

	if data := r.FormValue("data"); data != "" {
		if err := json.Unmarshal([]byte(data), dst); err != nil {
			writeInvalid(w, "invalid data field: "+err.Error())
			return nil, false
		}
	}
	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return nil, false
	}

	file, header, err := r.FormFile("imagen")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return nil, true
	case err != nil:
		writeInvalid(w, "invalid image: "+err.Error())
		return nil, false
	}
	return uploadFrom(file, header), true
}

// formUploads returns every file sent under field.
func formUploads(w http.ResponseWriter, r *http.Request, field string) ([]*service.Upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(storage.MaxImageSize); err != nil {
		writeInvalid(w, "invalid multipart form: "+err.Error())
		return nil, false
	}

	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		writeInvalid(w, "at least one image is required in field "+field)
		return nil, false
	}

	uploads := make([]*service.Upload, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			writeInvalid(w, "invalid image: "+err.Error())
			return nil, false
		}
		uploads = append(uploads, uploadFrom(f, h))
	}
	return uploads, true
}

func uploadFrom(f io.Reader, h *multipart.FileHeader) *service.Upload {
	return &service.Upload{Filename: h.Filename, Size: h.Size, Data: f}
}

// categoryParam resolves the {category} URL segment, accepting the English
// tag and the Spanish storefront name.
func categoryParam(w http.ResponseWriter, r *http.Request) (domain.Category, bool) {
	c, ok := domain.ParseCategory(chi.URLParam(r, "category"))
	if !ok {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "NOT_FOUND", Message: "unknown category " + chi.URLParam(r, "category")},
		})
		return "", false
	}
	return c, true
}

// pathParam returns an unescaped URL parameter such as a color with spaces.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

// multiValue collects a list parameter sent as repeated keys, a comma
// separated list or a JSON array. The first key that is present wins.
func multiValue(q url.Values, keys ...string) []string {
	for _, key := range keys {
		raw, ok := q[key]
		if !ok {
			continue
		}

		var out []string
		for _, v := range raw {
			v = strings.TrimSpace(v)
			if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
				var arr []any
				if json.Unmarshal([]byte(v), &arr) == nil {
					for _, item := range arr {
						out = appendValue(out, toString(item))
					}
					continue
				}
			}
			for _, part := range strings.Split(v, ",") {
				out = appendValue(out, part)
			}
		}
		return out
	}
	return nil
}

func appendValue(out []string, v string) []string {
	if v = strings.TrimSpace(v); v != "" {
		out = append(out, v)
	}
	return out
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return ""
	}
}

// productFilter reads the catalog filter query parameters. "tipo" is an
// alias of "types".
func productFilter(q url.Values) domain.ProductFilter {
	return domain.ProductFilter{
		Title:  strings.TrimSpace(q.Get("title")),
		Brands: multiValue(q, "brand", "brands"),
		Types:  multiValue(q, "types", "tipo"),
		Genero: multiValue(q, "genero"),
		Colors: multiValue(q, "color", "colors"),
		Sizes:  multiValue(q, "size", "sizes"),
	}
}
