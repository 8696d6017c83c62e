package http

import (
	"net/http"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/donmikel/extractrelay/applications/relay"
	"github.com/donmikel/extractrelay/applications/relay/config"
	"github.com/donmikel/extractrelay/applications/relay/metrics"
)

func NewHTTPServer(conf config.Api, extractService relay.ExtractService, collector *metrics.Collector, gatherer prometheus.Gatherer, logger log.Logger) (*http.Server, error) {
	maxUploadSize, err := conf.MaxUploadSizeBytes()
	if err != nil {
		return nil, err
	}

	mux := NewRouter(extractService, collector, gatherer, maxUploadSize, logger)
	return &http.Server{
		Addr:    conf.HTTPAddr,
		Handler: mux,
	}, nil
}
