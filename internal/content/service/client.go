// Package service implements the REST client for the source and destination content servers.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/allisson/cecsync/internal/content/domain"
	"github.com/allisson/cecsync/internal/errors"
	jobDomain "github.com/allisson/cecsync/internal/job/domain"
)

// Server API paths.
const (
	exportJobsPath = "/content/management/api/v1.1/content-templates/exportjobs"
	importJobsPath = "/content/management/api/v1.1/content-templates/importjobs"
	bulkItemsPath  = "/content/management/api/v1.1/bulkItemsOperations"
	itemsPath      = "/content/management/api/v1.1/items"
	filesPath      = "/documents/api/1.2/files"
	filesDataPath  = "/documents/api/1.2/files/data"
)

// DefaultTimeout bounds a single request when Config.Timeout is unset.
const DefaultTimeout = 60 * time.Second

// maxErrorBody caps how much of an error response is read into an APIError.
const maxErrorBody = 4096

// Config holds the connection settings of one content server.
type Config struct {
	Name     string // "source" or "destination", used in logs and errors
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client talks to one content server with Basic authentication.
type Client struct {
	baseURL    *url.URL
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates cfg and creates a Client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.Wrapf(domain.ErrNotConfigured, "%s server url is empty", cfg.Name)
	}
	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || (baseURL.Scheme != "http" && baseURL.Scheme != "https") || baseURL.Host == "" {
		return nil, errors.Wrapf(domain.ErrNotConfigured, "%s server url %q is invalid", cfg.Name, cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    baseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("server", cfg.Name)),
	}, nil
}

type jobCreatedResponse struct {
	JobID string `json:"jobId"`
	ID    string `json:"id"`
}

type linkResponse struct {
	Href string `json:"href"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

type jobStatusResponse struct {
	ID                 string         `json:"id"`
	Status             string         `json:"status"`
	Progress           string         `json:"progress"` // bulk operations report their state here
	PercentageComplete int            `json:"percentageComplete"`
	ErrorDescription   string         `json:"errorDescription"`
	Error              *errorResponse `json:"error"`
	DownloadLink       []linkResponse `json:"downloadLink"`
}

type fileResponse struct {
	ID string `json:"id"`
}

// SubmitExportJob starts exporting one content item and returns the job id.
func (c *Client) SubmitExportJob(ctx context.Context, itemID string) (string, error) {
	body := map[string]any{
		"name": "cecsync_export_" + itemID,
		"items": map[string]any{
			"contentItems": []string{itemID},
		},
	}
	return c.submitJob(ctx, exportJobsPath, body)
}

// SubmitImportJob starts importing an uploaded export archive into a repository.
func (c *Client) SubmitImportJob(ctx context.Context, fileID, repositoryID string) (string, error) {
	body := map[string]any{
		"exportDocId":  fileID,
		"repositoryId": repositoryID,
		"policies":     "createOrUpdate",
	}
	return c.submitJob(ctx, importJobsPath, body)
}

// PublishItems starts a bulk publish of items to a channel.
func (c *Client) PublishItems(ctx context.Context, channelID string, itemIDs []string) (string, error) {
	return c.submitBulkOperation(ctx, "publish", channelID, itemIDs)
}

// UnpublishItems starts a bulk unpublish of items from a channel.
func (c *Client) UnpublishItems(ctx context.Context, channelID string, itemIDs []string) (string, error) {
	return c.submitBulkOperation(ctx, "unpublish", channelID, itemIDs)
}

func (c *Client) submitBulkOperation(ctx context.Context, operation, channelID string, itemIDs []string) (string, error) {
	if len(itemIDs) == 0 {
		return "", errors.Wrapf(errors.ErrInvalidInput, "%s requires at least one item", operation)
	}
	clauses := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		clauses = append(clauses, fmt.Sprintf("id eq %q", id))
	}
	body := map[string]any{
		"q": strings.Join(clauses, " or "),
		"operations": map[string]any{
			operation: map[string]any{
				"channels": []map[string]string{{"id": channelID}},
			},
		},
	}
	return c.submitJob(ctx, bulkItemsPath, body)
}

// GetJobStatus reads the status of a job created by this server.
func (c *Client) GetJobStatus(ctx context.Context, handle jobDomain.Handle) (*jobDomain.Job, error) {
	var base string
	switch handle.Kind {
	case jobDomain.KindExport:
		base = exportJobsPath
	case jobDomain.KindImport:
		base = importJobsPath
	case jobDomain.KindPublish, jobDomain.KindUnpublish:
		base = bulkItemsPath
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown job kind %q", handle.Kind)
	}

	var resp jobStatusResponse
	if err := c.doJSON(ctx, http.MethodGet, path.Join(base, handle.ID), nil, &resp); err != nil {
		return nil, err
	}

	status := resp.Status
	if status == "" {
		status = resp.Progress
	}
	job := &jobDomain.Job{
		ID:       handle.ID,
		Kind:     handle.Kind,
		Status:   jobDomain.ParseStatus(status),
		Progress: resp.PercentageComplete,
	}
	switch job.Status {
	case jobDomain.StatusSuccess:
		if len(resp.DownloadLink) > 0 {
			job.Result = resp.DownloadLink[0].Href
		}
	case jobDomain.StatusFailed:
		job.ErrorDescription = resp.ErrorDescription
		if job.ErrorDescription == "" && resp.Error != nil {
			job.ErrorDescription = firstNonEmpty(resp.Error.Detail, resp.Error.Title)
		}
	}
	return job, nil
}

// DownloadArtifact opens the export archive behind link. Relative links resolve against the
// server URL. The caller closes the returned reader.
func (c *Client) DownloadArtifact(ctx context.Context, link string) (io.ReadCloser, error) {
	target, err := c.resolve(link)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// UploadArtifact stores content as a document and returns its file id.
func (c *Client) UploadArtifact(ctx context.Context, name string, content io.Reader) (string, error) {
	reader, writer := io.Pipe()
	defer func() { _ = reader.Close() }()
	form := multipart.NewWriter(writer)

	go func() {
		writer.CloseWithError(writeUploadForm(form, name, content))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint(filesDataPath), reader)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.send(req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	var file fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return "", errors.Wrap(domain.ErrUnexpectedResponse, err.Error())
	}
	if file.ID == "" {
		return "", errors.Wrap(domain.ErrUnexpectedResponse, "upload response has no file id")
	}
	return file.ID, nil
}

func writeUploadForm(form *multipart.Writer, name string, content io.Reader) error {
	if err := form.WriteField("jsonInputParameters", `{"parentID":"self"}`); err != nil {
		return err
	}
	part, err := form.CreateFormFile("primaryFile", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return form.Close()
}

// DeleteArtifact removes an uploaded document.
func (c *Client) DeleteArtifact(ctx context.Context, fileID string) error {
	return c.doJSON(ctx, http.MethodDelete, path.Join(filesPath, fileID), nil, nil)
}

// DeleteItem deletes a content item. A rejection by the server is returned as *domain.DeleteError
// carrying the server message; transport failures are returned unchanged.
func (c *Client) DeleteItem(ctx context.Context, itemID string) error {
	err := c.doJSON(ctx, http.MethodDelete, path.Join(itemsPath, itemID), nil, nil)
	if err == nil {
		return nil
	}
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return &domain.DeleteError{ItemID: itemID, Message: apiErr.Detail, Err: apiErr}
	}
	return err
}

func (c *Client) submitJob(ctx context.Context, apiPath string, body any) (string, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.endpoint(apiPath), body)
	if err != nil {
		return "", err
	}
	resp, err := c.send(req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	var created jobCreatedResponse
	if resp.ContentLength != 0 {
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil && err != io.EOF {
			return "", errors.Wrap(domain.ErrUnexpectedResponse, err.Error())
		}
	}
	jobID := firstNonEmpty(created.JobID, created.ID)
	if jobID == "" {
		if location := resp.Header.Get("Location"); location != "" {
			jobID = path.Base(location)
		}
	}
	if jobID == "" {
		return "", errors.Wrap(domain.ErrUnexpectedResponse, "job response has no job id")
	}
	return jobID, nil
}

func (c *Client) doJSON(ctx context.Context, method, apiPath string, body, out any) error {
	req, err := c.newJSONRequest(ctx, method, c.endpoint(apiPath), body)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(domain.ErrUnexpectedResponse, err.Error())
	}
	return nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, target string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	return req, nil
}

// send performs the request. Transport failures wrap domain.ErrTransport; non-2xx answers are
// returned as *domain.APIError with the body already closed.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("content server request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Any("error", err),
		)
		return nil, errors.Join(domain.ErrTransport, err)
	}

	c.logger.Debug("content server request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer closeBody(resp)
		return nil, &domain.APIError{StatusCode: resp.StatusCode, Detail: readErrorDetail(resp.Body)}
	}
	return resp, nil
}

func (c *Client) endpoint(apiPath string) string {
	return c.baseURL.JoinPath(apiPath).String()
}

func (c *Client) resolve(link string) (string, error) {
	ref, err := url.Parse(link)
	if err != nil || link == "" {
		return "", errors.Wrapf(domain.ErrUnexpectedResponse, "invalid download link %q", link)
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

func readErrorDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var parsed errorResponse
	if json.Unmarshal(data, &parsed) == nil {
		if detail := firstNonEmpty(parsed.Detail, parsed.Title); detail != "" {
			return detail
		}
	}
	return strings.TrimSpace(string(data))
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
