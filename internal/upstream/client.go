// Package upstream is the typed client for the labeling server REST API.
package upstream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/labelhub/autotrain/internal/failure"
	"github.com/labelhub/autotrain/internal/httpclient"
)

// ModelFormField is the multipart field the server reads uploaded weights from.
const ModelFormField = "caffemodel"

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Client is the set of labeling server operations a cycle needs.
type Client interface {
	// ListProjects returns every project known to the server.
	ListProjects(ctx context.Context) ([]Project, error)
	// ListUnconsumedBatches returns the label batches of a project not yet trained on.
	ListUnconsumedBatches(ctx context.Context, projectID ID) ([]Batch, error)
	// ListImageNames returns the image names of one label.
	ListImageNames(ctx context.Context, projectID, labelNo ID) ([]string, error)
	// FetchImage downloads one image and returns its decoded bytes.
	FetchImage(ctx context.Context, projectID, labelNo ID, name string) ([]byte, error)
	// AcknowledgeRecord marks a batch record as trained.
	AcknowledgeRecord(ctx context.Context, recordID ID) error
	// UploadModel publishes trained weights for a project.
	UploadModel(ctx context.Context, projectID ID, filename string, weights io.Reader) error
}

// HTTPClient implements Client over the server's JSON API.
type HTTPClient struct {
	endpoint string
	http     httpclient.Client
}

var _ Client = (*HTTPClient)(nil)

// NewClient creates a client for the server at endpoint, e.g. "http://localhost:8888".
func NewClient(endpoint string, hc httpclient.Client) *HTTPClient {
	return &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     hc,
	}
}

// ListProjects implements Client.
func (c *HTTPClient) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.getList(ctx, "/projects", nil, &projects); err != nil {
		return nil, failure.Wrap(failure.KindUpstream, err, "list projects")
	}
	return projects, nil
}

// ListUnconsumedBatches implements Client.
func (c *HTTPClient) ListUnconsumedBatches(ctx context.Context, projectID ID) ([]Batch, error) {
	query := url.Values{
		"projectId": {projectID.String()},
		"isTrained": {"false"},
	}
	var batches []Batch
	if err := c.getList(ctx, "/images", query, &batches); err != nil {
		return nil, failure.Wrap(failure.KindUpstream, err, "list unconsumed images of project %s", projectID)
	}
	return batches, nil
}

// ListImageNames implements Client.
func (c *HTTPClient) ListImageNames(ctx context.Context, projectID, labelNo ID) ([]string, error) {
	query := url.Values{
		"projectId": {projectID.String()},
		"labelNo":   {labelNo.String()},
	}
	var names []string
	if err := c.getList(ctx, "/image/raw/list", query, &names); err != nil {
		return nil, failure.Wrap(failure.KindUpstream, err,
			"list images of project %s label %s", projectID, labelNo)
	}
	return names, nil
}

// FetchImage implements Client. The response must carry ok == 1 and a base64 payload.
func (c *HTTPClient) FetchImage(ctx context.Context, projectID, labelNo ID, name string) ([]byte, error) {
	query := url.Values{
		"projectId": {projectID.String()},
		"labelNo":   {labelNo.String()},
		"imgname":   {name},
	}

	env, err := c.get(ctx, "/image/raw", query)
	if err != nil {
		return nil, failure.Wrap(failure.KindUpstream, err, "fetch image %s", name)
	}
	if env.OK == nil || *env.OK != 1 {
		return nil, failure.New(failure.KindUpstream, "fetch image %s: server reported not ok", name)
	}

	var encoded string
	if err := json.Unmarshal(env.Data, &encoded); err != nil {
		return nil, failure.Wrap(failure.KindUpstream, err, "fetch image %s: data is not a string", name)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, failure.Wrap(failure.KindUpstream, err, "fetch image %s: invalid base64 payload", name)
	}
	return raw, nil
}

// AcknowledgeRecord implements Client.
func (c *HTTPClient) AcknowledgeRecord(ctx context.Context, recordID ID) error {
	target := fmt.Sprintf("%s/image/record/%s?isTrained=true", c.endpoint, url.PathEscape(recordID.String()))
	body, err := c.http.Put(ctx, target)
	if err != nil {
		return failure.Wrap(failure.KindUpstream, err, "acknowledge record %s", recordID)
	}
	if err := checkOK(body); err != nil {
		return failure.Wrap(failure.KindUpstream, err, "acknowledge record %s", recordID)
	}
	return nil
}

// UploadModel implements Client.
func (c *HTTPClient) UploadModel(ctx context.Context, projectID ID, filename string, weights io.Reader) error {
	target := fmt.Sprintf("%s/caffemodel/%s", c.endpoint, url.PathEscape(projectID.String()))
	body, err := c.http.PostMultipart(ctx, target, ModelFormField, filename, weights)
	if err != nil {
		return failure.Wrap(failure.KindUpstream, err, "upload model of project %s", projectID)
	}
	if err := checkOK(body); err != nil {
		return failure.Wrap(failure.KindUpstream, err, "upload model of project %s", projectID)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values) (envelope, error) {
	target := c.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	body, err := c.http.Get(ctx, target)
	if err != nil {
		return envelope{}, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, fmt.Errorf("malformed response from %s: %w", path, err)
	}
	return env, nil
}

// getList decodes the data array of a list endpoint into out. A missing or null
// data field is an error; an empty array is not.
func (c *HTTPClient) getList(ctx context.Context, path string, query url.Values, out any) error {
	env, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}
	if !env.hasData() {
		return fmt.Errorf("response from %s has no data", path)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("malformed data from %s: %w", path, err)
	}
	return nil
}

// checkOK rejects a JSON response whose ok flag is present and not 1.
// Bodies that are not JSON objects are accepted.
func checkOK(body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	if env.OK != nil && *env.OK != 1 {
		return fmt.Errorf("server reported ok=%d", *env.OK)
	}
	return nil
}
