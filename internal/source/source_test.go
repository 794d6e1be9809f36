package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sift/internal/domain"
	"github.com/roach88/sift/internal/ir"
)

func plantRecords() []map[string]any {
	return []map[string]any{
		{"name": "Роза", "color": "красный", "size": "маленький", "type": "цветок", "link": "-"},
		{"name": "Дуб", "color": "зеленый", "size": "большой", "type": "дерево", "link": "-"},
		{"name": "Пион", "color": "красный", "size": "маленький", "type": "цветок", "link": "https://example.com/peony"},
	}
}

func TestStaticFetch(t *testing.T) {
	src := Static{Records: plantRecords(), Map: domain.PlantFromRecord}

	facts, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, facts, 3)
	assert.Equal(t, ir.String("Роза"), facts[0].Fields["name"])
	assert.Equal(t, ir.String("Пион"), facts[2].Fields["name"])
}

func TestStaticFetchMapError(t *testing.T) {
	records := []map[string]any{
		{"name": "Роза", "color": "красный", "size": "маленький", "type": "цветок", "link": "-"},
		{"name": "Сорняк", "color": 3.14, "size": "маленький", "type": "цветок", "link": "-"},
	}
	src := Static{Records: records, Map: domain.PlantFromRecord}

	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 1")
}

func TestStaticFetchContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := Static{Records: plantRecords(), Map: domain.PlantFromRecord}
	_, err := src.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// A pre-filter must only drop records the rules would reject anyway; for
// records that survive it, the mapped facts are identical to the unfiltered
// fetch.
func TestStaticFilterPreservesSurvivors(t *testing.T) {
	unfiltered := Static{Records: plantRecords(), Map: domain.PlantFromRecord}
	filtered := Static{
		Records: plantRecords(),
		Map:     domain.PlantFromRecord,
		Filter: func(rec map[string]any) bool {
			return rec["color"] == "красный"
		},
	}

	all, err := unfiltered.Fetch(context.Background())
	require.NoError(t, err)
	got, err := filtered.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(all[0]))
	assert.True(t, got[1].Equal(all[2]))
}

func TestFileFetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plants.yaml")
	catalog := `records:
  - name: "Роза"
    color: "красный"
    size: "маленький"
    type: "цветок"
    link: "-"
  - name: "Дуб"
    color: "зеленый"
    size: "большой"
    type: "дерево"
    link: "-"
`
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0o644))

	src := File{Path: path, Map: domain.PlantFromRecord}
	facts, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, ir.String("красный"), facts[0].Fields["color"])
	assert.Equal(t, ir.String("дерево"), facts[1].Fields["type"])
}

func TestFileFetchMissing(t *testing.T) {
	src := File{Path: filepath.Join(t.TempDir(), "absent.yaml"), Map: domain.PlantFromRecord}
	_, err := src.Fetch(context.Background())
	assert.Error(t, err)
}

func TestFileFetchMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("records: [unclosed"), 0o644))

	src := File{Path: path, Map: domain.PlantFromRecord}
	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse catalog")
}

func TestHTTPFetchBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"origin": "MOW", "destination": "LED", "airline": "S7", "price": 450000, "currency": "RUR", "link": "-"}
		]`))
	}))
	defer srv.Close()

	src := HTTP{URL: srv.URL, Map: domain.FlightFromRecord}
	facts, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, facts, 1)
	// UseNumber keeps the price an exact integer through decoding.
	assert.Equal(t, ir.Int(450000), facts[0].Fields["price"])
}

func TestHTTPFetchItemsEnvelope(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": [
			{"position": "Go developer", "company": "Яндекс", "location": "Москва", "from_salary": 100000, "to_salary": 200000, "currency": "RUR", "link": "-"},
			{"position": "Intern", "company": "VK", "location": "Казань", "from_salary": null, "to_salary": null, "link": "-"}
		], "found": 2}`))
	}))
	defer srv.Close()

	src := HTTP{
		URL:    srv.URL,
		Params: url.Values{"text": {"golang"}, "area": {"1"}},
		Map:    domain.VacancyFromRecord,
	}
	facts, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, facts, 2)

	assert.Equal(t, "golang", gotQuery.Get("text"))
	assert.Equal(t, "1", gotQuery.Get("area"))

	assert.Equal(t, ir.Int(100000), facts[0].Fields["from_salary"])
	assert.Equal(t, ir.String("Москва"), facts[0].Fields["location"])
	// Missing salary bounds map to 0.
	assert.Equal(t, ir.Int(0), facts[1].Fields["from_salary"])
	assert.Equal(t, ir.Int(0), facts[1].Fields["to_salary"])
}

func TestHTTPFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := HTTP{URL: srv.URL, Map: domain.FlightFromRecord}
	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}

func TestHTTPFetchBadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "scalar", body: `42`},
		{name: "truncated", body: `{"items": [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			src := HTTP{URL: srv.URL, Map: domain.FlightFromRecord}
			_, err := src.Fetch(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestHTTPFetchRequiresURL(t *testing.T) {
	_, err := HTTP{Map: domain.FlightFromRecord}.Fetch(context.Background())
	assert.Error(t, err)
}

func TestFactsFetch(t *testing.T) {
	fact, err := domain.PlantFromRecord(plantRecords()[0])
	require.NoError(t, err)

	facts, err := Facts{fact}.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.True(t, facts[0].Equal(fact))
}
