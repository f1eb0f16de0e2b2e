// Package workitems talks to the work item tracking service. Writes are JSON
// patch documents with one add operation per field.
package workitems

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/ce-fello/bugbash-service/src/internal/model"

	"go.uber.org/zap"
)

type Client interface {
	CreateOne(ctx context.Context, workItemType string, fields model.FieldBag) (model.WorkItem, error)
	UpdateBatch(ctx context.Context, updates []Update) ([]model.WorkItem, error)
}

type Update struct {
	ID     int
	Fields model.FieldBag
}

type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// BuildPatchDocument emits one add operation per field, ordered by reference
// name. Times are serialized as RFC 3339 text.
func BuildPatchDocument(fields model.FieldBag) []PatchOperation {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := make([]PatchOperation, 0, len(names))
	for _, name := range names {
		doc = append(doc, PatchOperation{Op: "add", Path: "/fields/" + name, Value: primitive(fields[name])})
	}
	return doc
}

func primitive(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

const patchContentType = "application/json-patch+json"

type HTTPClient struct {
	baseURL    string
	project    string
	apiVersion string
	token      string
	http       *http.Client
	log        *zap.Logger
}

func NewHTTPClient(baseURL, project, apiVersion, token string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		project:    project,
		apiVersion: apiVersion,
		token:      token,
		http:       &http.Client{Timeout: timeout},
		log:        logger,
	}
}

func (c *HTTPClient) CreateOne(ctx context.Context, workItemType string, fields model.FieldBag) (model.WorkItem, error) {
	c.log.Debug("CreateOne: start", zap.String("type", workItemType), zap.Int("fields", len(fields)))
	endpoint := fmt.Sprintf("%s/%s/_apis/wit/workitems/$%s?api-version=%s",
		c.baseURL, url.PathEscape(c.project), url.PathEscape(workItemType), url.QueryEscape(c.apiVersion))

	var wi model.WorkItem
	if err := c.send(ctx, http.MethodPost, endpoint, patchContentType, BuildPatchDocument(fields), &wi); err != nil {
		c.log.Error("CreateOne: request failed", zap.String("type", workItemType), zap.Error(err))
		return model.WorkItem{}, err
	}
	c.log.Info("CreateOne: success", zap.Int("work_item_id", wi.ID))
	return wi, nil
}

type batchRequest struct {
	Method  string            `json:"method"`
	URI     string            `json:"uri"`
	Headers map[string]string `json:"headers"`
	Body    []PatchOperation  `json:"body"`
}

type batchResponse struct {
	Count int `json:"count"`
	Value []struct {
		Code int    `json:"code"`
		Body string `json:"body"`
	} `json:"value"`
}

// UpdateBatch patches several work items in one round trip. Any failed entry
// fails the whole call.
func (c *HTTPClient) UpdateBatch(ctx context.Context, updates []Update) ([]model.WorkItem, error) {
	if len(updates) == 0 {
		return nil, nil
	}
	c.log.Debug("UpdateBatch: start", zap.Int("count", len(updates)))
	reqs := make([]batchRequest, 0, len(updates))
	for _, u := range updates {
		reqs = append(reqs, batchRequest{
			Method:  http.MethodPatch,
			URI:     "/_apis/wit/workItems/" + strconv.Itoa(u.ID) + "?api-version=" + c.apiVersion,
			Headers: map[string]string{"Content-Type": patchContentType},
			Body:    BuildPatchDocument(u.Fields),
		})
	}

	var resp batchResponse
	if err := c.send(ctx, http.MethodPost, c.baseURL+"/_apis/wit/$batch", "application/json", reqs, &resp); err != nil {
		c.log.Error("UpdateBatch: request failed", zap.Error(err))
		return nil, err
	}
	if len(resp.Value) != len(updates) {
		c.log.Error("UpdateBatch: result count mismatch", zap.Int("want", len(updates)), zap.Int("got", len(resp.Value)))
		return nil, fmt.Errorf("batch returned %d results for %d updates", len(resp.Value), len(updates))
	}

	out := make([]model.WorkItem, 0, len(resp.Value))
	for i, v := range resp.Value {
		if v.Code < 200 || v.Code > 299 {
			c.log.Error("UpdateBatch: entry failed", zap.Int("index", i), zap.Int("code", v.Code))
			return nil, fmt.Errorf("batch entry %d: status %d: %s", i, v.Code, v.Body)
		}
		var wi model.WorkItem
		if err := json.Unmarshal([]byte(v.Body), &wi); err != nil {
			return nil, fmt.Errorf("batch entry %d: decode: %w", i, err)
		}
		out = append(out, wi)
	}
	c.log.Info("UpdateBatch: success", zap.Int("count", len(out)))
	return out, nil
}

func (c *HTTPClient) send(ctx context.Context, method, endpoint, contentType string, body, into any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.SetBasicAuth("", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("send: close body failed", zap.Error(err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
