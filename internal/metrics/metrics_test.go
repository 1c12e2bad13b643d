package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryIncAndSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Inc(CounterSecretsCreated)
	r.Inc(CounterSecretsCreated)
	r.Add(CounterSecretsExpired, 5)
	r.Add(CounterSecretsExpired, 0)  // ignored
	r.Add(CounterSecretsExpired, -3) // ignored

	snap := r.Snapshot()
	assert.EqualValues(t, 2, snap[CounterSecretsCreated])
	assert.EqualValues(t, 5, snap[CounterSecretsExpired])

	// Snapshot is a copy.
	snap[CounterSecretsCreated] = 99
	assert.EqualValues(t, 2, r.Snapshot()[CounterSecretsCreated])
}

func TestRegistryNilSafe(t *testing.T) {
	var r *Registry
	r.Add(CounterSecretsCreated, 1) // must not panic
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Inc(CounterSecretsRetrieved)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1000, r.Snapshot()[CounterSecretsRetrieved])
}

func TestHandlerSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Inc(CounterSecretsCreated)

	rec := httptest.NewRecorder()
	Handler(r, "")(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Counters map[string]int64 `json:"counters"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	assert.EqualValues(t, 1, body.Counters[CounterSecretsCreated])
}

func TestHandlerToken(t *testing.T) {
	r := NewRegistry()
	h := Handler(r, "sekrit")

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
