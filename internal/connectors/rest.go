package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"

	"github.com/tidwall/gjson"
)

// Hard caps on REST timeouts, applied even when no maximum is configured
const (
	hardConnectTimeout = 30 * time.Second
	hardReadTimeout    = 120 * time.Second
)

// RESTConnector fetches a JSON array of records over HTTP
type RESTConnector struct {
	cfg    config.RESTConnectorConfig
	logger *logger.Logger
}

// NewRESTConnector creates a REST connector
func NewRESTConnector(cfg config.RESTConnectorConfig, log *logger.Logger) *RESTConnector {
	return &RESTConnector{cfg: cfg, logger: log}
}

// SourceType returns REST
func (c *RESTConnector) SourceType() string {
	return SourceTypeREST
}

// restRequest is a validated REST source configuration
type restRequest struct {
	url            *url.URL
	method         string
	headers        map[string]string
	body           []byte
	auth           map[string]interface{}
	recordsPath    string
	connectTimeout time.Duration
	readTimeout    time.Duration
}

func (c *RESTConnector) parse(cfg models.JSONMap) (*restRequest, error) {
	rawURL, err := requiredString(cfg, "url")
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, models.NewConfigurationError("url must be an absolute http or https URL")
	}

	method, err := optionalString(cfg, "method")
	if err != nil {
		return nil, err
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet && method != http.MethodPost {
		return nil, models.NewConfigurationError("method %s is not supported, use GET or POST", method)
	}

	headers, err := optionalStringMap(cfg, "headers")
	if err != nil {
		return nil, err
	}

	var body []byte
	if rawBody, ok := lookup(cfg, "body"); ok {
		if method != http.MethodPost {
			return nil, models.NewConfigurationError("body is only supported for POST")
		}
		if s, isString := rawBody.(string); isString {
			body = []byte(s)
		} else if body, err = json.Marshal(rawBody); err != nil {
			return nil, models.NewConfigurationError("body cannot be encoded as JSON")
		}
	}

	auth, err := optionalObject(cfg, "auth")
	if err != nil {
		return nil, err
	}

	recordsPath, err := optionalString(cfg, "records_path", "recordsPath")
	if err != nil {
		return nil, err
	}

	connectMS, _, err := optionalInt(cfg, "connect_timeout_ms", "connectTimeoutMs")
	if err != nil {
		return nil, err
	}
	readMS, _, err := optionalInt(cfg, "read_timeout_ms", "readTimeoutMs")
	if err != nil {
		return nil, err
	}

	req := &restRequest{
		url:            u,
		method:         method,
		headers:        headers,
		body:           body,
		auth:           auth,
		recordsPath:    strings.TrimSpace(recordsPath),
		connectTimeout: boundedDuration(time.Duration(connectMS)*time.Millisecond, c.cfg.DefaultConnectTimeout, minDuration(c.cfg.MaxConnectTimeout, hardConnectTimeout)),
		readTimeout:    boundedDuration(time.Duration(readMS)*time.Millisecond, c.cfg.DefaultReadTimeout, minDuration(c.cfg.MaxReadTimeout, hardReadTimeout)),
	}

	// Fail on bad auth config before any request is sent.
	probe, _ := http.NewRequest(method, u.String(), nil)
	if err := setAuthentication(probe, auth); err != nil {
		return nil, err
	}

	return req, nil
}

// setAuthentication applies the auth block to req
func setAuthentication(req *http.Request, auth map[string]interface{}) error {
	if auth == nil {
		return nil
	}
	param := func(key string) string {
		s, _ := auth[key].(string)
		return s
	}

	switch strings.ToLower(param("type")) {
	case "bearer", "oauth":
		token := param("token")
		if token == "" {
			return models.NewConfigurationError("auth.token is required for bearer authentication")
		}
		req.Header.Set("Authorization", "Bearer "+token)

	case "basic":
		username, password := param("username"), param("password")
		if username == "" || password == "" {
			return models.NewConfigurationError("auth.username and auth.password are required for basic authentication")
		}
		req.SetBasicAuth(username, password)

	case "api_key":
		headerName := param("header_name")
		if headerName == "" {
			headerName = "X-API-Key"
		}
		apiKey := param("api_key")
		if apiKey == "" {
			return models.NewConfigurationError("auth.api_key is required for api_key authentication")
		}
		req.Header.Set(headerName, apiKey)

	case "none", "":
		// No authentication required

	default:
		return models.NewConfigurationError("unsupported authentication type %q", param("type"))
	}
	return nil
}

func (c *RESTConnector) client(req *restRequest) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: req.connectTimeout}).DialContext,
		TLSHandshakeTimeout:   req.connectTimeout,
		ResponseHeaderTimeout: req.readTimeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   req.connectTimeout + req.readTimeout,
	}
}

// LoadRecords performs the request and extracts the record array
func (c *RESTConnector) LoadRecords(ctx context.Context, cfg models.JSONMap) ([]models.SourceRecord, error) {
	req, err := c.parse(cfg)
	if err != nil {
		return nil, err
	}

	log := c.logger.WithConnector(SourceTypeREST).
		WithField("host", req.url.Host).
		WithField("method", req.method)

	var bodyReader io.Reader
	if req.body != nil {
		bodyReader = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url.String(), bodyReader)
	if err != nil {
		return nil, models.NewConfigurationError("cannot build request: %v", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}
	if err := setAuthentication(httpReq, req.auth); err != nil {
		return nil, err
	}

	client := c.client(req)
	defer client.CloseIdleConnections()

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, models.NewSourceFetchError(stripURL(err), "request to %s failed", req.url.Host)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, models.NewSourceFetchError(nil, "source %s responded with status %d", req.url.Host, resp.StatusCode)
	}

	limit := c.cfg.MaxBodyBytes
	reader := io.Reader(resp.Body)
	if limit > 0 {
		reader = io.LimitReader(resp.Body, limit+1)
	}
	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, models.NewSourceFetchError(err, "reading response from %s failed", req.url.Host)
	}
	if limit > 0 && int64(len(payload)) > limit {
		return nil, models.NewSourceFetchError(nil, "response from %s exceeds %d bytes", req.url.Host, limit)
	}

	records, err := extractRecords(payload, req.recordsPath)
	if err != nil {
		return nil, err
	}

	log.WithField("records", len(records)).Info("Loaded REST records")
	return records, nil
}

// extractRecords locates the record array by dot path, or by default the
// top-level array or its "records" field.
func extractRecords(payload []byte, path string) ([]models.SourceRecord, error) {
	if !gjson.ValidBytes(payload) {
		return nil, models.NewSourceFetchError(nil, "response is not valid JSON")
	}

	var array gjson.Result
	if path != "" {
		array = gjson.GetBytes(payload, path)
		if !array.Exists() {
			return nil, models.NewSourceFetchError(nil, "records_path %q not found in response", path)
		}
		if !array.IsArray() {
			return nil, models.NewSourceFetchError(nil, "records_path %q does not resolve to an array", path)
		}
	} else {
		root := gjson.ParseBytes(payload)
		switch {
		case root.IsArray():
			array = root
		case root.Get("records").IsArray():
			array = root.Get("records")
		default:
			return nil, models.NewSourceFetchError(nil, "response is not an array and has no records array")
		}
	}

	elements := array.Array()
	records := make([]models.SourceRecord, 0, len(elements))
	for i, el := range elements {
		if !el.IsObject() {
			return nil, models.NewSourceFetchError(nil, "element %d is not an object", i)
		}
		record, err := gjsonRecord(i+1, el)
		if err != nil {
			return nil, models.NewSourceFetchError(err, "element %d cannot be decoded", i)
		}
		records = append(records, record)
	}
	return records, nil
}

// gjsonRecord converts one JSON object, keeping its keys in document order
func gjsonRecord(rowNumber int, el gjson.Result) (models.SourceRecord, error) {
	record := models.SourceRecord{RowNumber: rowNumber, RawData: el.Raw}
	var convErr error
	el.ForEach(func(key, value gjson.Result) bool {
		v, err := gjsonValue(value)
		if err != nil {
			convErr = err
			return false
		}
		record.Set(key.String(), v)
		return true
	})
	return record, convErr
}

func gjsonValue(value gjson.Result) (*string, error) {
	var s string
	switch value.Type {
	case gjson.Null:
		return nil, nil
	case gjson.String:
		return models.NormalizeFieldValue(value.String()), nil
	case gjson.Number:
		s = value.Raw
	case gjson.True:
		s = "true"
	case gjson.False:
		s = "false"
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(value.Raw)); err != nil {
			return nil, err
		}
		s = buf.String()
	}
	return &s, nil
}

// stripURL drops the request URL, which may carry credentials in its query,
// from transport errors.
func stripURL(err error) error {
	if urlErr, ok := err.(*url.Error); ok {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
