package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/donmikel/extractrelay/applications/relay"
	"github.com/donmikel/extractrelay/applications/relay/domain"
	"github.com/donmikel/extractrelay/applications/relay/metrics"
)

var errNoFilePart = fmt.Errorf("multipart form has no %q file part", domain.FileField)

func NewRouter(svc relay.ExtractService, collector *metrics.Collector, gatherer prometheus.Gatherer, maxUploadSize int64, logger log.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware(logger))
	r.HandleFunc("/api/extract", ExtractHandler(svc, collector, maxUploadSize, logger)).Methods(http.MethodPost)
	r.HandleFunc("/health", HealthHandler(logger)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// ExtractHandler relays the uploaded file downstream and answers 200 with the
// downstream body. Every failure is a 500.
func ExtractHandler(svc relay.ExtractService, collector *metrics.Collector, maxUploadSize int64, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := log.With(logger, "request_id", domain.RequestIDFromContext(ctx))

		outcome := metrics.OutcomeError
		defer func() { collector.ObserveRequest(outcome) }()

		if maxUploadSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		}

		file, err := readFilePart(r)
		if err != nil {
			level.Error(logger).Log("msg", "can't read uploaded file",
				"err", err,
			)
			writeErr(w, err, http.StatusInternalServerError)
			return
		}

		res, err := svc.Extract(ctx, file)
		if err != nil {
			level.Error(logger).Log("msg", "Extract error",
				"err", err,
			)
			writeErr(w, err, http.StatusInternalServerError)
			return
		}
		outcome = metrics.OutcomeOK

		if res.ContentType != "" {
			w.Header().Set("Content-Type", res.ContentType)
		}
		w.WriteHeader(http.StatusOK)
		if _, err = w.Write(res.Body); err != nil {
			level.Error(logger).Log("msg", "error body write", "err", err)
		}
	}
}

// readFilePart streams the multipart body and keeps only the file part in
// memory, so nothing is spilled to temporary files. A "file" field without a
// filename is a plain form value, not an upload.
func readFilePart(r *http.Request) (domain.File, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return domain.File{}, fmt.Errorf("invalid multipart form: %w", err)
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return domain.File{}, errNoFilePart
		}
		if err != nil {
			return domain.File{}, fmt.Errorf("can't read multipart part: %w", err)
		}

		if part.FormName() != domain.FileField {
			part.Close()
			continue
		}

		name, ok, err := rawFileName(part)
		if err != nil {
			part.Close()
			return domain.File{}, err
		}
		if !ok {
			part.Close()
			continue
		}

		content, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return domain.File{}, fmt.Errorf("can't read file content: %w", err)
		}

		return domain.File{
			Name:    name,
			Content: content,
		}, nil
	}
}

// rawFileName returns the filename parameter as sent. Part.FileName strips
// directories, which would change the name forwarded downstream.
func rawFileName(part *multipart.Part) (string, bool, error) {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return "", false, fmt.Errorf("invalid Content-Disposition: %w", err)
	}

	name, ok := params["filename"]
	return name, ok, nil
}

func HealthHandler(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			level.Error(logger).Log("msg", "can't write health response", "err", err)
		}
	}
}

// requestIDMiddleware takes the caller's request id or makes a new one.
func requestIDMiddleware(logger log.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(domain.RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(domain.RequestIDHeader, id)

			level.Debug(logger).Log("msg", "new request",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			next.ServeHTTP(w, r.WithContext(domain.WithRequestID(r.Context(), id)))
		})
	}
}

func writeErr(w http.ResponseWriter, err error, status int) {
	w.WriteHeader(status)
	_, err = w.Write([]byte(err.Error()))
	if err != nil {
		fmt.Println("can't write response ", err)
	}
}
