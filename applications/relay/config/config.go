package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v2"
)

const (
	defaultHTTPAddr          = "0.0.0.0:8080"
	defaultMaxUploadSize     = "32MiB"
	defaultDownstreamTimeout = 60 * time.Second
)

type Server struct {
	API        Api        `yaml:"api"`
	Downstream Downstream `yaml:"downstream"`
}

type Api struct {
	HTTPAddr string `yaml:"http_addr"`
	// MaxUploadSize bounds the inbound request body, e.g. "32MiB". "0" disables the limit.
	MaxUploadSize string `yaml:"max_upload_size"`
}

type Downstream struct {
	// URL of the processing service the uploads are forwarded to.
	URL string `yaml:"url"`
	// Timeout bounds one downstream exchange. Zero means no client timeout.
	Timeout time.Duration `yaml:"timeout"`
}

func defaults() Server {
	return Server{
		API: Api{
			HTTPAddr:      defaultHTTPAddr,
			MaxUploadSize: defaultMaxUploadSize,
		},
		Downstream: Downstream{
			Timeout: defaultDownstreamTimeout,
		},
	}
}

// Parse reads the YAML config at path on top of the defaults.
func Parse(path string) (Server, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return Server{}, fmt.Errorf("can't read config file: %w", err)
	}

	if err = yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Server{}, fmt.Errorf("can't unmarshal config: %w", err)
	}

	return cfg, nil
}

func (s Server) Validate() error {
	if err := s.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if err := s.Downstream.Validate(); err != nil {
		return fmt.Errorf("downstream: %w", err)
	}

	return nil
}

func (a Api) Validate() error {
	if a.HTTPAddr == "" {
		return errors.New("http_addr is required")
	}

	if _, err := a.MaxUploadSizeBytes(); err != nil {
		return err
	}

	return nil
}

func (a Api) MaxUploadSizeBytes() (int64, error) {
	size, err := humanize.ParseBytes(a.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("invalid max_upload_size %q: %w", a.MaxUploadSize, err)
	}

	return int64(size), nil
}

func (d Downstream) Validate() error {
	if d.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(d.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q must be an absolute http(s) URL", d.URL)
	}

	if d.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", d.Timeout)
	}

	return nil
}
