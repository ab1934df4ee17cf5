package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type (
	Config struct {
		Host      string
		AccessKey string
		Principal string
	}

	Params struct {
		Method      string
		Path        string
		Body        interface{}
		Response    interface{}
		QueryParams map[string]string
		Headers     map[string]string
	}

	Client interface {
		Do(ctx context.Context, param Params) error
		Download(ctx context.Context, param Params) (io.ReadCloser, error)
		Stream(ctx context.Context, param Params) (io.ReadCloser, error)
	}

	client struct {
		httpClient *http.Client
		baseUrl    string
		accessKey  string
		principal  string
	}
)

const (
	accessKeyHeader = "X-Access-Key"
	principalHeader = "X-Principal"
)

var ErrNotConfigured = errors.New("client is not configured, run 'paperstack config init' first")

func NewClient(cfg Config) Client {
	host := cfg.Host
	if host != "" && !strings.HasSuffix(host, "/") {
		host += "/"
	}
	if host != "" && !strings.HasSuffix(host, "v1/") {
		host += "v1/"
	}

	return &client{
		httpClient: &http.Client{},
		baseUrl:    host,
		accessKey:  cfg.AccessKey,
		principal:  cfg.Principal,
	}
}

func (c client) newRequest(ctx context.Context, param Params) (*http.Request, error) {
	if c.baseUrl == "" {
		return nil, ErrNotConfigured
	}

	requestUrl, err := url.Parse(c.baseUrl + param.Path)
	if err != nil {
		return nil, err
	}

	if len(param.QueryParams) > 0 {
		values := url.Values{}
		for k, v := range param.QueryParams {
			values.Add(k, v)
		}
		requestUrl.RawQuery = values.Encode()
	}

	var body io.Reader
	if param.Body != nil {
		bodyBin, err := json.Marshal(param.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewBuffer(bodyBin)
	}

	req, err := http.NewRequestWithContext(ctx, param.Method, requestUrl.String(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range param.Headers {
		req.Header.Set(k, v)
	}

	if c.accessKey != "" {
		req.Header.Set(accessKeyHeader, c.accessKey)
	}
	if c.principal != "" {
		req.Header.Set(principalHeader, c.principal)
	}
	return req, nil
}

func (c client) Do(ctx context.Context, param Params) error {
	req, err := c.newRequest(ctx, param)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseError(resp.StatusCode, responseBody)
	}

	if param.Response != nil {
		if err := json.Unmarshal(responseBody, param.Response); err != nil {
			return err
		}
	}
	return nil
}

// Download returns the raw response body. The caller closes it.
func (c client) Download(ctx context.Context, param Params) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, param)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() {
			_ = resp.Body.Close()
		}()
		body, _ := io.ReadAll(resp.Body)
		return nil, c.parseError(resp.StatusCode, body)
	}

	return resp.Body, nil
}

// Stream opens a newline delimited JSON stream.
func (c client) Stream(ctx context.Context, param Params) (io.ReadCloser, error) {
	return c.Download(ctx, param)
}

func (c client) parseError(status int, b []byte) error {
	var errorResponse struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &errorResponse); err != nil || errorResponse.Message == "" {
		return fmt.Errorf("request failed with status %d", status)
	}
	return errors.New(errorResponse.Message)
}
