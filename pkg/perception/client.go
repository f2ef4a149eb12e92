package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"omnisense-server/pkg/errors"
)

// serviceClient is the shared HTTP plumbing for one collaborator service.
// Collaborators accept multipart file uploads on an analysis endpoint and
// expose a GET /health liveness probe.
type serviceClient struct {
	name    string
	baseURL string
	client  *http.Client
	logger  *logrus.Entry
}

func newServiceClient(logger *logrus.Logger, name, baseURL string, timeout time.Duration) *serviceClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &serviceClient{
		name:    name,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.WithField("adapter", name),
	}
}

// postFile uploads payload as a multipart file to path and decodes the JSON
// response into out.
func (c *serviceClient) postFile(ctx context.Context, path, filename string, payload []byte, out interface{}) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fw, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return errors.Wrap(err, "create multipart form")
	}
	if _, err := fw.Write(payload); err != nil {
		return errors.Wrap(err, "write multipart payload")
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.NewAdapterUnavailable(c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.NewAdapterUnavailable(c.name, fmt.Errorf("%s: %s", resp.Status, string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response").WithField("service", c.name)
	}
	return nil
}

// Health probes the collaborator's /health endpoint. Any failure reports the
// service as offline; a probe never returns an error.
func (c *serviceClient) Health(ctx context.Context) HealthStatus {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return HealthStatus{Status: StatusOffline, Service: c.name}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithError(err).Debug("Health probe failed")
		return HealthStatus{Status: StatusOffline, Service: c.name}
	}
	defer resp.Body.Close()

	var status HealthStatus
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&status) != nil {
		return HealthStatus{Status: StatusOffline, Service: c.name}
	}
	if status.Service == "" {
		status.Service = c.name
	}
	return status
}
