// Package tenant is the HTTP client for the tenant service that runs image
// edit workflows: multipart submission, task status, completion and history.
package tenant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"garment-studio/internal/version"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 60 * time.Second

// maxErrorBody limits how much of a failed response is read.
const maxErrorBody = 64 << 10

var outputPrefix = regexp.MustCompile(`^output[\\/]`)

// Client talks to the tenant service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a client for baseURL authenticated by tokens.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit uploads the primary raster, up to three secondary rasters and the
// prompt as one multipart request.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	if len(req.Primary.Data) == 0 {
		return nil, errors.New("primary image is required")
	}
	if len(req.Secondary) > maxSecondaryImgs {
		return nil, fmt.Errorf("at most %d secondary images, got %d", maxSecondaryImgs, len(req.Secondary))
	}
	token, err := c.token()
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeSubmit(req)
	if err != nil {
		return nil, err
	}

	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, EndpointSubmit, token, contentType, body, &resp); err != nil {
		return nil, err
	}
	if resp.TaskID == "" {
		return nil, fmt.Errorf("%w: response has no task id", ErrRequestFailed)
	}
	resp.Status = resp.Status.Normalize()

	logrus.WithFields(logrus.Fields{
		"task_id":   resp.TaskID,
		"secondary": len(req.Secondary),
		"bytes":     body.Len(),
	}).Info("Edit task submitted")
	return &resp, nil
}

func encodeSubmit(req SubmitRequest) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if err := writeImage(w, "file", req.Primary); err != nil {
		return nil, "", err
	}
	fileType := req.FileType
	if fileType == "" {
		fileType = defaultFileType
	}
	if err := w.WriteField("fileType", fileType); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("prompt", req.Prompt); err != nil {
		return nil, "", err
	}
	for i, img := range req.Secondary {
		if err := writeImage(w, "image_"+strconv.Itoa(i+2), img); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func writeImage(w *multipart.Writer, field string, img Image) error {
	name := img.Name
	if name == "" {
		name = field + ".png"
	}
	ct := img.ContentType
	if ct == "" {
		ct = "image/png"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(img.Data)
	return err
}

// Status fetches the current state of taskID.
func (c *Client) Status(ctx context.Context, taskID string) (*StatusResponse, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, EndpointTasks+url.PathEscape(taskID), token, "", nil, &resp); err != nil {
		return nil, err
	}
	resp.Status = resp.Status.Normalize()
	if resp.TaskID == "" {
		resp.TaskID = taskID
	}
	return &resp, nil
}

// Complete finalizes a succeeded task and returns its result URLs.
func (c *Client) Complete(ctx context.Context, taskID string) ([]string, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	var resp completeResponse
	path := EndpointTasks + url.PathEscape(taskID) + completeSuffix
	if err := c.do(ctx, http.MethodPost, path, token, "application/json", nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.StoragePaths) > 0 {
		return c.StorageURLs(resp.StoragePaths), nil
	}
	return resp.Outputs, nil
}

// StorageURLs converts service storage paths such as
// `output\user\20250926_093357.png` into static image URLs.
func (c *Client) StorageURLs(paths []string) []string {
	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		rel := outputPrefix.ReplaceAllString(p, "")
		rel = strings.ReplaceAll(rel, `\`, "/")
		urls = append(urls, c.baseURL+EndpointImages+rel)
	}
	return urls
}

// History returns one page (1-based) of the user's remote task history.
func (c *Client) History(ctx context.Context, page int) ([]HistoryItem, error) {
	if page < 1 {
		page = 1
	}
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	var items []HistoryItem
	path := EndpointHistory + "?page=" + strconv.Itoa(page)
	if err := c.do(ctx, http.MethodGet, path, token, "", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) token() (string, error) {
	if c.tokens == nil {
		return "", ErrAuthRequired
	}
	return c.tokens.Token()
}

func (c *Client) do(ctx context.Context, method, path, token, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	log := logrus.WithFields(logrus.Fields{"method": method, "path": path})
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.WithError(err).Warn("Tenant request failed")
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if err := c.tokens.Clear(); err != nil {
			log.WithError(err).Debug("Failed to clear rejected token")
		}
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		remote := decodeError(resp.StatusCode, data)
		log.WithFields(logrus.Fields{"status": resp.StatusCode, "detail": remote.Message}).Warn("Tenant returned an error")
		return remote
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRequestFailed, err)
	}
	log.WithField("status", resp.StatusCode).Debug("Tenant request complete")
	return nil
}
