// Provides the generic JSON handler adapter.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	"github.com/maruel/pagetree/internal/apierrors"
	"github.com/maruel/pagetree/internal/server/dto"
)

// maxBodySize bounds request bodies; a bulk block sync is the largest.
const maxBodySize = 32 << 20

// Wrap adapts a function taking a decoded request to an http.Handler.
//
// The request body is decoded as JSON into In, rejecting unknown fields.
// Fields tagged `path:"name"` are then set from the route pattern and fields
// tagged `query:"name"` from the URL query, and the request is validated.
// The returned *Out is encoded as the JSON response; an error is written in
// the structured error shape.
//
// Example:
//
//	type DeletePageRequest struct {
//	    ID string `path:"id" json:"-"`
//	}
//
//	func (h *PageHandler) DeletePage(ctx context.Context, req *dto.DeletePageRequest) (*dto.OkResponse, error)
func Wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err2 := r.Body.Close(); err == nil {
			err = err2
		}
		if err != nil {
			slog.WarnContext(ctx, "Failed to read request body", "err", err)
			writeError(ctx, w, apierrors.BadRequest("failed to read request body").Wrap(err))
			return
		}
		in := new(In)
		if len(body) != 0 {
			d := json.NewDecoder(bytes.NewReader(body))
			d.DisallowUnknownFields()
			if err := d.Decode(in); err != nil {
				slog.WarnContext(ctx, "Failed to decode request body", "err", err)
				writeError(ctx, w, apierrors.BadRequest("invalid request body: "+err.Error()))
				return
			}
		}
		populatePathParams(r, in)
		if err := populateQueryParams(r, in); err != nil {
			writeError(ctx, w, apierrors.BadRequest(err.Error()))
			return
		}
		if err := PtrIn(in).Validate(); err != nil {
			writeError(ctx, w, err)
			return
		}
		out, err := fn(ctx, PtrIn(in))
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(out); err != nil {
			slog.ErrorContext(ctx, "Failed to encode response", "err", err)
		}
	})
}

// populatePathParams sets the string fields tagged `path:"name"`.
func populatePathParams(r *http.Request, in any) {
	elem, ok := structOf(in)
	if !ok {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		f := typ.Field(i)
		name := f.Tag.Get("path")
		if name == "" || f.Type.Kind() != reflect.String {
			continue
		}
		if v := r.PathValue(name); v != "" {
			elem.Field(i).SetString(v)
		}
	}
}

// populateQueryParams sets the string, int and bool fields tagged
// `query:"name"`.
func populateQueryParams(r *http.Request, in any) error {
	elem, ok := structOf(in)
	if !ok {
		return nil
	}
	q := r.URL.Query()
	typ := elem.Type()
	for i := range typ.NumField() {
		f := typ.Field(i)
		name := f.Tag.Get("query")
		if name == "" || !q.Has(name) {
			continue
		}
		v := q.Get(name)
		//nolint:exhaustive // Other kinds are not used in requests.
		switch f.Type.Kind() {
		case reflect.String:
			elem.Field(i).SetString(v)
		case reflect.Int:
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.New("invalid integer for query parameter " + name)
			}
			elem.Field(i).SetInt(int64(n))
		case reflect.Bool:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return errors.New("invalid boolean for query parameter " + name)
			}
			elem.Field(i).SetBool(b)
		default:
		}
	}
	return nil
}

func structOf(in any) (reflect.Value, bool) {
	v := reflect.ValueOf(in)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return v.Elem(), true
}

// writeError writes err in the structured error shape. Store errors are
// mapped to their HTTP status.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	e := apierrors.FromGateway(err)
	if e.StatusCode() >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Handler error", "err", err, "status", e.StatusCode(), "code", e.Code())
	} else {
		slog.DebugContext(ctx, "Request rejected", "err", err, "status", e.StatusCode(), "code", e.Code())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode())
	_ = json.NewEncoder(w).Encode(&apierrors.Body{
		Error:   apierrors.BodyError{Code: e.Code(), Message: e.Message()},
		Details: e.Details(),
	})
}
