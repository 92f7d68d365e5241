package cfddns_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudflare/cloudflare-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfddns"
)

// fakeCloudflare serves just enough of the Cloudflare v4 API for the provider:
// zone listing by name, record listing, and the record PATCH.
type fakeCloudflare struct {
	zones   []map[string]any
	records []map[string]any
	patches []map[string]any
}

func (f *fakeCloudflare) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /zones", func(w http.ResponseWriter, r *http.Request) {
		writeList(w, f.zones)
	})
	mux.HandleFunc("GET /zones/{zone}/dns_records", func(w http.ResponseWriter, r *http.Request) {
		writeList(w, f.records)
	})
	mux.HandleFunc("PATCH /zones/{zone}/dns_records/{record}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body["patched_id"] = r.PathValue("record")
		f.patches = append(f.patches, body)

		updated := map[string]any{"id": r.PathValue("record")}
		for k, v := range body {
			updated[k] = v
		}
		writeJSON(w, map[string]any{
			"success": true, "errors": []any{}, "messages": []any{},
			"result": updated,
		})
	})
	return mux
}

func writeList(w http.ResponseWriter, result []map[string]any) {
	if result == nil {
		result = []map[string]any{}
	}
	writeJSON(w, map[string]any{
		"success": true, "errors": []any{}, "messages": []any{},
		"result": result,
		"result_info": map[string]any{
			"page": 1, "per_page": 100,
			"count": len(result), "total_count": len(result), "total_pages": 1,
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func exampleZone() map[string]any {
	return map[string]any{"id": "zone123", "name": "example.com", "status": "active"}
}

func aRecord(id string, content string) map[string]any {
	return map[string]any{
		"id": id, "zone_id": "zone123", "zone_name": "example.com",
		"name": "home.example.com", "type": "A",
		"content": content, "ttl": 300, "proxied": true, "proxiable": true,
	}
}

func newTestClient(t *testing.T, fake *fakeCloudflare, ip string, options ...cfddns.Option) *cfddns.Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	api, err := cloudflare.NewWithAPIToken("test-token", cloudflare.BaseURL(srv.URL))
	require.NoError(t, err)

	options = append([]cfddns.Option{
		cfddns.UsingCloudflareAPI(api),
		cfddns.UsingResolver(cfddns.FromString(ip)),
	}, options...)
	client, err := cfddns.New("example.com", "home.example.com", options...)
	require.NoError(t, err)
	return client
}

func TestSyncRecordsUpToDate(t *testing.T) {
	fake := &fakeCloudflare{
		zones:   []map[string]any{exampleZone()},
		records: []map[string]any{aRecord("rec1", "1.2.3.4")},
	}
	client := newTestClient(t, fake, "1.2.3.4")

	result, err := client.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 1, result.Current)
	assert.Equal(t, 0, result.Updated)
	assert.True(t, result.UpToDate())
	assert.Empty(t, fake.patches, "no mutating call may happen when the address is unchanged")
}

func TestSyncRecordsUpdatesStaleRecord(t *testing.T) {
	fake := &fakeCloudflare{
		zones:   []map[string]any{exampleZone()},
		records: []map[string]any{aRecord("rec1", "1.2.3.4")},
	}
	client := newTestClient(t, fake, "5.6.7.8")

	result, err := client.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.False(t, result.UpToDate())

	require.Len(t, fake.patches, 1, "exactly one mutating call expected")
	patch := fake.patches[0]
	assert.Equal(t, "rec1", patch["patched_id"])
	assert.Equal(t, "5.6.7.8", patch["content"])
	assert.Equal(t, "A", patch["type"])
	assert.Equal(t, "home.example.com", patch["name"])
	assert.Equal(t, float64(300), patch["ttl"], "TTL must be preserved")
	assert.Equal(t, true, patch["proxied"], "proxied flag must be preserved")
}

func TestSyncRecordsDryRun(t *testing.T) {
	fake := &fakeCloudflare{
		zones:   []map[string]any{exampleZone()},
		records: []map[string]any{aRecord("rec1", "1.2.3.4")},
	}
	client := newTestClient(t, fake, "5.6.7.8", cfddns.WithDryRun(true))

	result, err := client.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated, "dry run still reports the records it would rewrite")
	assert.Empty(t, fake.patches, "dry run must not issue mutating calls")
}

func TestSyncRecordsZoneNotFound(t *testing.T) {
	fake := &fakeCloudflare{zones: nil}
	client := newTestClient(t, fake, "5.6.7.8")

	_, err := client.Run(context.Background())
	assert.ErrorIs(t, err, cfddns.ErrZoneNotFound)
	assert.Empty(t, fake.patches)
}

func TestSyncRecordsNoMatchingRecords(t *testing.T) {
	fake := &fakeCloudflare{
		zones:   []map[string]any{exampleZone()},
		records: nil,
	}
	client := newTestClient(t, fake, "5.6.7.8")

	result, err := client.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Matched)
	assert.False(t, result.UpToDate())
	assert.Empty(t, fake.patches)
}

func TestSyncRecordsMixedRecords(t *testing.T) {
	fake := &fakeCloudflare{
		zones: []map[string]any{exampleZone()},
		records: []map[string]any{
			aRecord("rec1", "5.6.7.8"),
			aRecord("rec2", "1.2.3.4"),
		},
	}
	client := newTestClient(t, fake, "5.6.7.8")

	result, err := client.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 1, result.Current)
	assert.Equal(t, 1, result.Updated)

	require.Len(t, fake.patches, 1)
	assert.Equal(t, "rec2", fake.patches[0]["patched_id"])
}
