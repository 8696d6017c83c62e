package downstream

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donmikel/extractrelay/applications/relay/domain"
)

type received struct {
	filename  string
	content   []byte
	parts     int
	requestID string
}

func newDownstream(t *testing.T, status int, body string) (*httptest.Server, *received, *int32) {
	t.Helper()

	got := &received{}
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)

		reader, err := r.MultipartReader()
		if !assert.NoError(t, err) {
			return
		}
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				break
			}
			if !assert.NoError(t, err) {
				return
			}
			got.parts++
			if part.FormName() == domain.FileField {
				_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
				assert.NoError(t, err)
				got.filename = params["filename"]
				got.content, err = io.ReadAll(part)
				assert.NoError(t, err)
			}
		}
		got.requestID = r.Header.Get(domain.RequestIDHeader)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, got, &calls
}

func TestProcessForwardsFileUnchanged(t *testing.T) {
	srv, got, calls := newDownstream(t, http.StatusOK, `{"text":"extracted content"}`)
	p := NewProcessor(srv.URL, srv.Client(), log.NewNopLogger())

	ctx := domain.WithRequestID(context.Background(), "req-1")
	res, err := p.Process(ctx, domain.File{Name: "doc.pdf", Content: []byte("%PDF-1.4...")})
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, 1, got.parts)
	assert.Equal(t, "doc.pdf", got.filename)
	assert.Equal(t, []byte("%PDF-1.4..."), got.content)
	assert.Equal(t, "req-1", got.requestID)

	assert.Equal(t, `{"text":"extracted content"}`, string(res.Body))
	assert.Equal(t, "application/json", res.ContentType)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestProcessKeepsFilenameAsIs(t *testing.T) {
	for _, name := range []string{"scans/2024/doc.pdf", `C:\scans\doc.pdf`, `quote "d".pdf`} {
		t.Run(name, func(t *testing.T) {
			srv, got, _ := newDownstream(t, http.StatusOK, "ok")
			p := NewProcessor(srv.URL, srv.Client(), log.NewNopLogger())

			_, err := p.Process(context.Background(), domain.File{Name: name, Content: []byte("x")})
			require.NoError(t, err)

			assert.Equal(t, name, got.filename)
		})
	}
}

func TestProcessBinaryContent(t *testing.T) {
	srv, got, _ := newDownstream(t, http.StatusOK, "")
	p := NewProcessor(srv.URL, srv.Client(), log.NewNopLogger())

	content := make([]byte, 256)
	for i := range content {
		content[i] = byte(i)
	}

	res, err := p.Process(context.Background(), domain.File{Name: "blob.bin", Content: content})
	require.NoError(t, err)

	assert.Equal(t, content, got.content)
	assert.Empty(t, res.Body)
}

func TestProcessKeepsDownstreamErrorStatus(t *testing.T) {
	srv, _, calls := newDownstream(t, http.StatusBadRequest, `{"detail":"Cannot open file"}`)
	p := NewProcessor(srv.URL, srv.Client(), log.NewNopLogger())

	res, err := p.Process(context.Background(), domain.File{Name: "a.txt", Content: []byte("a")})
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, `{"detail":"Cannot open file"}`, string(res.Body))
}

func TestProcessUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewProcessor(url, nil, log.NewNopLogger())
	_, err := p.Process(context.Background(), domain.File{Name: "a.txt", Content: []byte("a")})
	assert.Error(t, err)
}

func TestProcessCanceledContext(t *testing.T) {
	srv, _, calls := newDownstream(t, http.StatusOK, "ok")
	p := NewProcessor(srv.URL, srv.Client(), log.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, domain.File{Name: "a.txt", Content: []byte("a")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestGetURL(t *testing.T) {
	p := NewProcessor("http://python_service:8000/process", nil, log.NewNopLogger())
	assert.Equal(t, "http://python_service:8000/process", p.GetURL())
}
