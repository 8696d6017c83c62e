package downstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/extractrelay/applications/relay/domain"
	"github.com/donmikel/extractrelay/applications/relay/interfaces"
)

type httpProcessor struct {
	url    string
	client *http.Client
	log    log.Logger
}

func NewProcessor(url string, client *http.Client, logger log.Logger) interfaces.Processor {
	if client == nil {
		client = http.DefaultClient
	}

	return &httpProcessor{
		url:    url,
		client: client,
		log:    logger,
	}
}

func (p *httpProcessor) GetURL() string {
	return p.url
}

func (p *httpProcessor) Process(ctx context.Context, file domain.File) (domain.Result, error) {
	body, contentType, err := encodeFile(file)
	if err != nil {
		return domain.Result{}, fmt.Errorf("can't encode multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, body)
	if err != nil {
		return domain.Result{}, fmt.Errorf("can't build downstream request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if id := domain.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(domain.RequestIDHeader, id)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.Result{}, fmt.Errorf("downstream request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Result{}, fmt.Errorf("can't read downstream response: %w", err)
	}

	level.Debug(p.log).Log("msg", "downstream responded",
		"url", p.url,
		"status", resp.StatusCode,
		"size", humanize.Bytes(uint64(len(data))),
	)

	return domain.Result{
		Body:        data,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}

func encodeFile(file domain.File) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	part, err := mw.CreateFormFile(domain.FileField, file.Name)
	if err != nil {
		return nil, "", err
	}

	if _, err = part.Write(file.Content); err != nil {
		return nil, "", err
	}

	if err = mw.Close(); err != nil {
		return nil, "", err
	}

	return buf, mw.FormDataContentType(), nil
}
