package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/AnshRaj112/buildlog-backend/internal/middleware"
	"github.com/AnshRaj112/buildlog-backend/internal/services"
	"github.com/AnshRaj112/buildlog-backend/pkg/clientip"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxJSONBody = 1 << 20
	// multipartMemory is how much of a multipart body is kept in memory before spilling to disk.
	multipartMemory = 8 << 20
	maxUserAgent    = 512
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// bindJSON decodes the body into dst and validates it. A failed "required"
// rule reports missing; other rules name the offending field.
func bindJSON(r *http.Request, dst interface{}, missing string) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(dst); err != nil {
		return apperr.Validation("Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return bindError(err, missing)
	}
	return nil
}

func bindError(err error, missing string) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() != "required" {
		return apperr.Validation(fmt.Sprintf("%s is invalid", verrs[0].Field()))
	}
	return apperr.Validation(missing)
}

func objectIDParam(r *http.Request, name, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("Invalid " + what + " id")
	}
	return id, nil
}

// caller returns the authenticated user. Routes that need it sit behind
// middleware.Authenticate, so a miss here is a routing bug.
func caller(r *http.Request) primitive.ObjectID {
	id, _ := middleware.UserID(r.Context())
	return id
}

func clientInfo(r *http.Request) services.ClientInfo {
	return services.ClientInfo{
		IP:        clientip.RealClientIP(r),
		UserAgent: clientip.UserAgent(r, maxUserAgent),
	}
}

// pageParams reads ?before=<RFC3339>&limit=<n>.
func pageParams(r *http.Request) (*time.Time, int64, error) {
	q := r.URL.Query()
	var before *time.Time
	if v := q.Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, 0, apperr.Validation("Invalid before timestamp")
		}
		before = &t
	}
	var limit int64
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return nil, 0, apperr.Validation("Invalid limit")
		}
		limit = n
	}
	return before, limit, nil
}

// Uploads reads multipart forms with a size cap shared by every media route.
type Uploads struct {
	MaxBytes int64
}

// parse caps the body and parses a multipart form. Requests that are not
// multipart pass through with no files.
func (u Uploads) parse(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, u.MaxBytes+multipartMemory)
	err := r.ParseMultipartForm(multipartMemory)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return apperr.Validation(fmt.Sprintf("File too large (max %d MB)", u.MaxBytes>>20))
	}
	return apperr.Validation("Invalid form data")
}

// file returns the validated upload in field, or nil when none was sent.
func (u Uploads) file(r *http.Request, field string) (*services.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Validation("Invalid form data")
	}
	defer f.Close()
	return services.ReadUpload(f, hdr.Filename, u.MaxBytes)
}

// isMultipart reports whether the request carries a multipart form.
func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/")
}
