package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const maxJSONBody = 1 << 20

// decodeJSON reads a JSON request body of at most 1MB into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("request body is required")
		}
		return apperrors.InvalidInput("invalid request body: " + err.Error())
	}
	return nil
}

// readUpload reads the multipart file field into an UploadInput. ok is false
// when the request carries no such file.
func readUpload(w http.ResponseWriter, r *http.Request, field string) (*storage.UploadInput, bool, error) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxFileSize+maxJSONBody)
	if err := r.ParseMultipartForm(maxJSONBody); err != nil {
		return nil, false, apperrors.InvalidInput("invalid multipart form: " + err.Error())
	}
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.InvalidInput(fmt.Sprintf("invalid %s upload: %v", field, err))
	}

	contentType := header.Header.Get("Content-Type")
	if _, known := storage.AllowedContentTypes[contentType]; !known {
		sniff := make([]byte, 512)
		n, _ := io.ReadFull(file, sniff)
		contentType = http.DetectContentType(sniff[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, false, fmt.Errorf("rewind upload: %w", err)
		}
	}
	return &storage.UploadInput{
		ContentType: contentType,
		Size:        header.Size,
		Data:        file,
	}, true, nil
}

// isMultipart reports whether the request body is a multipart form.
func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// CookieSettings control the session cookie.
type CookieSettings struct {
	TTL    time.Duration
	Secure bool
}

func (c CookieSettings) set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(c.TTL),
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieSettings) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// queryParams flattens the query string, keeping the first value per key.
func queryParams(r *http.Request) map[string]string {
	q := r.URL.Query()
	out := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
