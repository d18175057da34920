package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/logging"
)

// handleImport streams a TSV file into the store. The body is either the
// raw TSV or a multipart form with a "file" part. The whole response waits
// for the import to finish; at most IMPORT_MAX_CONCURRENT imports run at
// once and further requests queue for IMPORT_MAX_WAIT_TIME.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Limiter.Acquire(r.Context()); err != nil {
		if errors.Is(err, core.ErrTooManyImports) {
			w.Header().Set("Retry-After", "30")
		}
		respondError(w, r, err)
		return
	}
	defer s.svc.Limiter.Release()

	ctx := r.Context()
	if t := s.cfg.Import.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	body, err := importBody(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(ctx).Info("import requested", "bytes", r.ContentLength)

	res, err := s.svc.Importer.Run(ctx, body, s.svc.Sink)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, tooLarge.Limit)
		}
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleImportStatus reports how many import slots are in use.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.svc.Limiter.Status())
}

// importBody returns the TSV stream of r without buffering it.
func importBody(r *http.Request) (io.Reader, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: multipart body: %v", core.ErrValidation, err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no file provided", core.ErrValidation)
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, core.ErrFileTooLarge
			}
			return nil, fmt.Errorf("%w: multipart body: %v", core.ErrValidation, err)
		}
		if part.FormName() == "file" {
			return part, nil
		}
		_ = part.Close()
	}
}
