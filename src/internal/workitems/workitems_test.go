package workitems

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ce-fello/bugbash-service/src/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildPatchDocument(t *testing.T) {
	at := time.Date(2026, 10, 14, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))

	doc := BuildPatchDocument(model.FieldBag{
		"System.Title":              "Crash",
		"Microsoft.VSTS.Common.Due": at,
		"Custom.Points":             3,
	})

	assert.Equal(t, []PatchOperation{
		{Op: "add", Path: "/fields/Custom.Points", Value: 3},
		{Op: "add", Path: "/fields/Microsoft.VSTS.Common.Due", Value: "2026-10-14T07:30:00Z"},
		{Op: "add", Path: "/fields/System.Title", Value: "Crash"},
	}, doc)
}

type fakeService struct {
	created  []PatchOperation
	itemType string
	batch    []batchRequest
	fail     bool
	short    bool // drop the last batch result
}

func (f *fakeService) router() http.Handler {
	r := chi.NewRouter()
	r.Post("/{project}/_apis/wit/workitems/{type}", func(w http.ResponseWriter, r *http.Request) {
		if f.fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		f.itemType = chi.URLParam(r, "type")
		if r.Header.Get("Content-Type") != patchContentType {
			http.Error(w, "bad content type", http.StatusUnsupportedMediaType)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&f.created)
		_ = json.NewEncoder(w).Encode(model.WorkItem{ID: 101, Fields: map[string]any{"System.Title": "Crash"}})
	})
	r.Post("/_apis/wit/$batch", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&f.batch)
		var resp batchResponse
		for i := range f.batch {
			body, _ := json.Marshal(model.WorkItem{ID: 200 + i})
			resp.Value = append(resp.Value, struct {
				Code int    `json:"code"`
				Body string `json:"body"`
			}{Code: http.StatusOK, Body: string(body)})
		}
		if f.short && len(resp.Value) > 0 {
			resp.Value = resp.Value[:len(resp.Value)-1]
		}
		if f.fail && len(resp.Value) > 0 {
			resp.Value[len(resp.Value)-1].Code = http.StatusConflict
		}
		resp.Count = len(resp.Value)
		_ = json.NewEncoder(w).Encode(resp)
	})
	return r
}

func newTestClient(t *testing.T, f *fakeService) *HTTPClient {
	srv := httptest.NewServer(f.router())
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, "proj", "7.0", "", 5*time.Second, zap.NewNop())
}

func TestCreateOne(t *testing.T) {
	f := &fakeService{}
	c := newTestClient(t, f)

	wi, err := c.CreateOne(context.Background(), "Bug", model.FieldBag{"System.Title": "Crash", "System.Tags": "BugBash_1;Accepted"})

	require.NoError(t, err)
	assert.Equal(t, 101, wi.ID)
	assert.Equal(t, "$Bug", f.itemType)
	require.Len(t, f.created, 2)
	assert.Equal(t, "/fields/System.Tags", f.created[0].Path)
	assert.Equal(t, "BugBash_1;Accepted", f.created[0].Value)
}

func TestCreateOne_ServerError(t *testing.T) {
	c := newTestClient(t, &fakeService{fail: true})

	_, err := c.CreateOne(context.Background(), "Bug", model.FieldBag{"System.Title": "Crash"})

	assert.ErrorContains(t, err, "status 500")
}

func TestUpdateBatch(t *testing.T) {
	f := &fakeService{}
	c := newTestClient(t, f)

	got, err := c.UpdateBatch(context.Background(), []Update{
		{ID: 7, Fields: model.FieldBag{"System.Tags": "ui"}},
		{ID: 8, Fields: model.FieldBag{"System.Tags": ""}},
	})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 200, got[0].ID)
	require.Len(t, f.batch, 2)
	assert.Equal(t, http.MethodPatch, f.batch[0].Method)
	assert.Equal(t, "/_apis/wit/workItems/7?api-version=7.0", f.batch[0].URI)
	assert.Equal(t, patchContentType, f.batch[1].Headers["Content-Type"])
	assert.Equal(t, []PatchOperation{{Op: "add", Path: "/fields/System.Tags", Value: ""}}, f.batch[1].Body)
}

func TestUpdateBatch_EntryFailure(t *testing.T) {
	c := newTestClient(t, &fakeService{fail: true})

	_, err := c.UpdateBatch(context.Background(), []Update{{ID: 7, Fields: model.FieldBag{"System.Tags": "ui"}}})

	assert.ErrorContains(t, err, "status 409")
}

func TestUpdateBatch_ResultCountMismatch(t *testing.T) {
	c := newTestClient(t, &fakeService{short: true})

	got, err := c.UpdateBatch(context.Background(), []Update{
		{ID: 7, Fields: model.FieldBag{"System.Tags": "ui"}},
		{ID: 8, Fields: model.FieldBag{"System.Tags": "perf"}},
	})

	assert.ErrorContains(t, err, "1 results for 2 updates")
	assert.Nil(t, got)
}

func TestUpdateBatch_Empty(t *testing.T) {
	c := NewHTTPClient("http://unused.invalid", "proj", "7.0", "", time.Second, zap.NewNop())

	got, err := c.UpdateBatch(context.Background(), nil)

	assert.NoError(t, err)
	assert.Nil(t, got)
}
