// Package indexer builds the package to import-name map by querying a
// package index for the top-level names each distribution installs.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pyimports/internal/core/errors"
	"pyimports/internal/shared/observability"
	"pyimports/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultIndexURL = "https://pypi.org/pypi"

	defaultTimeout = 60 * time.Second
	// maxArchiveSize bounds how much of a distribution is buffered.
	maxArchiveSize = 256 << 20
	limiterTTL     = 10 * time.Minute
)

// LookupResult is the outcome of one package lookup. Err is nil on success.
type LookupResult struct {
	Package string
	Version string
	File    string
	Modules []string
	Err     error
}

func (r LookupResult) OK() bool {
	return r.Err == nil
}

// Lookuper resolves a package name to the import names it provides.
type Lookuper interface {
	Lookup(ctx context.Context, name string) LookupResult
}

// Client queries a PyPI-compatible JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiters   *util.LimiterRegistry
}

// ClientOption configures a Client.
type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRateLimit caps requests per second to each host. Zero disables the
// limit.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(client *Client) {
		client.limiters.Close()
		client.limiters = util.NewLimiterRegistry(requestsPerSecond, 1, limiterTTL)
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultIndexURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiters:   util.NewLimiterRegistry(0, 1, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Close() {
	c.limiters.Close()
}

type releaseFile struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	PackageType string `json:"packagetype"`
	Yanked      bool   `json:"yanked"`
}

type projectInfo struct {
	Info struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"info"`
	URLs []releaseFile `json:"urls"`
}

// Lookup fetches the latest release of name and reads the import names from
// its preferred distribution file.
func (c *Client) Lookup(ctx context.Context, name string) LookupResult {
	ctx, span := observability.Tracer.Start(ctx, "Indexer.Lookup")
	defer span.End()
	span.SetAttributes(attribute.String("package", name))

	res := c.lookup(ctx, name)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		observability.IndexLookupsTotal.WithLabelValues("error").Inc()
	} else {
		observability.IndexLookupsTotal.WithLabelValues("ok").Inc()
	}
	return res
}

func (c *Client) lookup(ctx context.Context, name string) LookupResult {
	res := LookupResult{Package: name}

	var info projectInfo
	metaURL := c.baseURL + "/" + url.PathEscape(name) + "/json"
	body, err := c.get(ctx, metaURL)
	if err != nil {
		res.Err = errors.AddContext(err, errors.CtxPackage, name)
		return res
	}
	if err := json.Unmarshal(body, &info); err != nil {
		res.Err = errors.AddContext(errors.Wrap(err, errors.CodeUpstream, "decode project metadata"), errors.CtxPackage, name)
		return res
	}
	res.Version = info.Info.Version

	file, ok := pickDistribution(info.URLs)
	if !ok {
		res.Err = errors.AddContext(errors.New(errors.CodeNotFound, "latest release has no wheel or source archive"), errors.CtxPackage, name)
		return res
	}
	res.File = file.Filename

	archive, err := c.get(ctx, file.URL)
	if err != nil {
		res.Err = errors.AddContext(err, errors.CtxPackage, name)
		return res
	}
	modules, err := ImportNames(file.Filename, archive)
	if err != nil {
		res.Err = errors.AddContext(err, errors.CtxPackage, name)
		return res
	}
	res.Modules = modules
	return res
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "invalid url")
	}
	if err := c.limiters.Get(u.Host).Wait(ctx, 1); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "create request")
	}
	req.Header.Set("Accept", "application/json, application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUpstream, "request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("%s not found", rawURL))
	case resp.StatusCode != http.StatusOK:
		return nil, errors.New(errors.CodeUpstream, fmt.Sprintf("%s returned %s", rawURL, resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveSize+1))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUpstream, "read response")
	}
	if len(body) > maxArchiveSize {
		return nil, errors.New(errors.CodeUpstream, fmt.Sprintf("%s exceeds %d bytes", rawURL, maxArchiveSize))
	}
	return body, nil
}

// pickDistribution prefers a pure Python wheel, then any wheel, then a source
// archive. Yanked files are never picked.
func pickDistribution(files []releaseFile) (releaseFile, bool) {
	var wheel, sdist *releaseFile
	for i := range files {
		f := &files[i]
		if f.Yanked || f.URL == "" {
			continue
		}
		switch {
		case f.PackageType == "bdist_wheel" || strings.HasSuffix(f.Filename, ".whl"):
			if strings.HasSuffix(f.Filename, "-none-any.whl") {
				return *f, true
			}
			if wheel == nil {
				wheel = f
			}
		case f.PackageType == "sdist" && isSourceArchive(f.Filename):
			if sdist == nil {
				sdist = f
			}
		}
	}
	if wheel != nil {
		return *wheel, true
	}
	if sdist != nil {
		return *sdist, true
	}
	return releaseFile{}, false
}
