package periphery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sbw-site/geotrack/internal/models"
	"github.com/sbw-site/geotrack/internal/pkg/apperr"
)

const maxParamsBody = 64 << 10

// Provider resolves periphery parameters and outbound endpoints from the
// api_configs table. Nothing is cached; every call reads fresh values.
type Provider struct {
	db      *gorm.DB
	client  *http.Client
	headers map[string]string
	log     *zap.Logger
}

// Options configures a Provider.
type Options struct {
	Timeout time.Duration
	// Headers are sent with the params request, e.g. the guest Cookie the
	// upstream expects.
	Headers map[string]string
	Client  *http.Client
}

func NewProvider(db *gorm.DB, opts Options, log *zap.Logger) *Provider {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{db: db, client: client, headers: opts.Headers, log: log}
}

// EndpointURL returns the URL configured under key. A missing row or an
// empty URL is a configuration error.
func (p *Provider) EndpointURL(ctx context.Context, key string) (string, error) {
	var row models.APIConfig
	err := p.db.WithContext(ctx).Where(&models.APIConfig{Key: key}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperr.Config("API URL for key '%s' not found", key)
	}
	if err != nil {
		return "", apperr.Persistence(err, "load api config %s", key)
	}
	url := strings.TrimSpace(row.URL)
	if url == "" {
		return "", apperr.Config("API URL for key '%s' is empty", key)
	}
	return url, nil
}

// Params fetches the current parameters. It never fails: any problem is
// logged and the defaults are returned.
func (p *Provider) Params(ctx context.Context) Params {
	params, err := p.fetch(ctx)
	if err != nil {
		p.log.Warn("periphery params unavailable, using defaults",
			zap.Error(err),
			zap.Float64("radius", DefaultRadius),
			zap.Int("minutes", DefaultMinutes),
		)
		return Defaults()
	}
	return params
}

// Resolve applies override on top of the fetched parameters. The upstream
// is only consulted when the override is incomplete.
func (p *Provider) Resolve(ctx context.Context, override Override) Params {
	if override.Complete() {
		return override.Apply(Params{})
	}
	return override.Apply(p.Params(ctx))
}

type paramsEnvelope struct {
	Message *struct {
		Radius  *json.Number `json:"radius"`
		Minutes *json.Number `json:"minutes"`
	} `json:"message"`
}

func (p *Provider) fetch(ctx context.Context) (Params, error) {
	url, err := p.EndpointURL(ctx, KeyParamsAPI)
	if err != nil {
		return Params{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Params{}, apperr.Network(err, "build params request")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Params{}, apperr.Network(err, "fetch periphery params")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Params{}, apperr.Network(nil, "periphery params status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxParamsBody))
	if err != nil {
		return Params{}, apperr.Network(err, "read periphery params")
	}
	return decodeParams(body)
}

func decodeParams(body []byte) (Params, error) {
	var env paramsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Params{}, apperr.Parse(err, "decode periphery params")
	}
	if env.Message == nil {
		return Params{}, apperr.Parse(nil, "periphery params response has no message")
	}

	params := Defaults()
	if n := env.Message.Radius; n != nil {
		v, err := n.Float64()
		if err != nil {
			return Params{}, apperr.Parse(err, "periphery radius %q", n.String())
		}
		params.Radius = v
	}
	if n := env.Message.Minutes; n != nil {
		v, err := n.Float64()
		if err != nil {
			return Params{}, apperr.Parse(err, "periphery minutes %q", n.String())
		}
		if math.IsNaN(v) || v < 1 || v > MaxMinutes {
			return Params{}, apperr.Parse(nil, "periphery minutes out of range: %s", n.String())
		}
		params.Minutes = int(v)
	}
	if err := params.Validate(); err != nil {
		return Params{}, apperr.Parse(err, "periphery params out of range")
	}
	return params, nil
}
