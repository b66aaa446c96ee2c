package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hearthdata/hearth/internal/job"
	"github.com/hearthdata/hearth/internal/store"
	"github.com/hearthdata/hearth/pkg/config"
	"github.com/hearthdata/hearth/pkg/connector/core"
	"github.com/hearthdata/hearth/pkg/connector/router"
	"github.com/hearthdata/hearth/pkg/errors"
	"github.com/hearthdata/hearth/pkg/models"
)

// listSource serves canned raw records per location and standardizes them
// into the canonical shape.
type listSource struct {
	name      string
	enabled   bool
	byLoc     map[string][]core.RawRecord
	errByLoc  map[string]error
	searchErr error
	stats     core.CallStats
}

func (s *listSource) Name() string        { return s.name }
func (s *listSource) Enabled() bool       { return s.enabled }
func (s *listSource) Authenticated() bool { return true }

func (s *listSource) SearchProperties(ctx context.Context, location string, opts *core.SearchOptions) ([]core.RawRecord, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if err := s.errByLoc[location]; err != nil {
		return nil, err
	}
	return s.byLoc[location], nil
}

func (s *listSource) GetPropertyDetails(context.Context, string) (core.RawRecord, error) {
	return nil, errors.New(errors.ErrorTypeNotFound, "not implemented")
}

func (s *listSource) GetMarketTrends(context.Context, string, *core.TrendOptions) (core.RawRecord, error) {
	return nil, errors.New(errors.ErrorTypeNotFound, "not implemented")
}

func (s *listSource) StandardizeProperty(raw core.RawRecord) (*models.PropertyRecord, error) {
	id, _ := raw["id"].(string)
	street, _ := raw["street"].(string)
	price, _ := raw["price"].(float64)
	return &models.PropertyRecord{
		ExternalID: id,
		Source:     s.name,
		Address: models.Address{
			Street: street,
			City:   "San Francisco",
			State:  "CA",
			Zip:    "94105",
		},
		Price:  price,
		Status: "active",
	}, nil
}

func (s *listSource) Stats() *core.CallStats      { return &s.stats }
func (s *listSource) Close(context.Context) error { return nil }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	return store.New(db)
}

func testDeps(t *testing.T, rt *router.Router, st *store.Store) Deps {
	return Deps{
		Router: rt,
		Store:  st,
		Config: config.SyncConfig{
			Locations:      []string{"San Francisco, CA"},
			FuzzyThreshold: 90,
			SearchLimit:    100,
		},
		Logger: zaptest.NewLogger(t),
	}
}

func TestRegisterExposesPlugin(t *testing.T) {
	src := &listSource{name: "zillow", enabled: true}
	rt, err := router.New("zillow", src)
	require.NoError(t, err)

	registry := job.NewRegistry()
	require.NoError(t, Register(registry, testDeps(t, rt, newTestStore(t))))
	assert.True(t, registry.Has(PluginName))
}

func TestPipelineRequiresDependencies(t *testing.T) {
	_, err := newPipeline(Deps{}, nil)
	assert.Error(t, err)
}

func TestPipelineRequiresLocations(t *testing.T) {
	src := &listSource{name: "zillow", enabled: true}
	rt, err := router.New("zillow", src)
	require.NoError(t, err)

	deps := testDeps(t, rt, newTestStore(t))
	deps.Config.Locations = nil
	_, err = newPipeline(deps, nil)
	assert.Error(t, err)
}

func TestPipelineRejectsBadThresholdOverride(t *testing.T) {
	src := &listSource{name: "zillow", enabled: true}
	rt, err := router.New("zillow", src)
	require.NoError(t, err)

	_, err = newPipeline(testDeps(t, rt, newTestStore(t)), map[string]interface{}{
		"fuzzy_threshold": float64(150),
	})
	assert.Error(t, err)
}

func TestFullRunUpsertsAndDeduplicates(t *testing.T) {
	src := &listSource{
		name:    "zillow",
		enabled: true,
		byLoc: map[string][]core.RawRecord{
			"San Francisco, CA": {
				{"id": "p1", "street": "123 Main St", "price": 750000.0},
				{"id": "p1", "street": "123 Main St", "price": 750000.0},   // strict duplicate
				{"id": "p2", "street": "123 Main Street", "price": 755000.0}, // fuzzy duplicate of p1
				{"id": "p3", "street": "999 Elm Dr", "price": 400000.0},
			},
		},
	}
	rt, err := router.New("zillow", src)
	require.NoError(t, err)
	st := newTestStore(t)

	p, err := newPipeline(testDeps(t, rt, st), nil)
	require.NoError(t, err)

	engine := job.NewEngine(zaptest.NewLogger(t))
	result := engine.Run(context.Background(), "test-run", p)

	require.True(t, result.Success, "run failed: %s", result.Error)
	assert.Equal(t, 2, result.RecordsProcessed)
	assert.Equal(t, 2, result.Extra["records_added"])
	assert.Equal(t, 0, result.Extra["records_failed"])

	count, err := st.CountProperties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	row, err := st.FindByExternalIDAndSource(context.Background(), "p1", "zillow")
	require.NoError(t, err)
	require.NotNil(t, row)

	// p2 lost fuzzy dedup to the earlier p1 and must not be stored.
	row, err = st.FindByExternalIDAndSource(context.Background(), "p2", "zillow")
	require.NoError(t, err)
	assert.Nil(t, row)

	// Every connector gets a health snapshot after the run.
	snaps, err := st.LatestHealthSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "zillow", snaps[0].Source)
}

func TestSecondRunUpdatesInsteadOfInserting(t *testing.T) {
	src := &listSource{
		name:    "zillow",
		enabled: true,
		byLoc: map[string][]core.RawRecord{
			"San Francisco, CA": {
				{"id": "p1", "street": "123 Main St", "price": 750000.0},
			},
		},
	}
	rt, err := router.New("zillow", src)
	require.NoError(t, err)
	st := newTestStore(t)
	engine := job.NewEngine(zaptest.NewLogger(t))

	p, err := newPipeline(testDeps(t, rt, st), nil)
	require.NoError(t, err)
	first := engine.Run(context.Background(), "run-1", p)
	require.True(t, first.Success)
	assert.Equal(t, 1, first.Extra["records_added"])

	src.byLoc["San Francisco, CA"][0]["price"] = 760000.0
	p, err = newPipeline(testDeps(t, rt, st), nil)
	require.NoError(t, err)
	second := engine.Run(context.Background(), "run-2", p)
	require.True(t, second.Success)
	assert.Equal(t, 0, second.Extra["records_added"])
	assert.Equal(t, 1, second.Extra["records_updated"])

	row, err := st.FindByExternalIDAndSource(context.Background(), "p1", "zillow")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 760000.0, row.Price)
}

func TestExtractSkipsFailedLocations(t *testing.T) {
	src := &listSource{
		name:    "zillow",
		enabled: true,
		byLoc: map[string][]core.RawRecord{
			"Oakland, CA": {
				{"id": "p9", "street": "1 Lake Merritt Blvd", "price": 500000.0},
			},
		},
		errByLoc: map[string]error{
			"Nowhere, ZZ": errors.New(errors.ErrorTypeSource, "unknown location"),
		},
	}
	rt, err := router.New("zillow", src)
	require.NoError(t, err)

	deps := testDeps(t, rt, newTestStore(t))
	deps.Config.Locations = []string{"Nowhere, ZZ", "Oakland, CA"}
	p, err := newPipeline(deps, nil)
	require.NoError(t, err)

	raw, err := p.Extract(context.Background())
	require.NoError(t, err)
	records := raw.([]*models.PropertyRecord)
	require.Len(t, records, 1)
	assert.Equal(t, "p9", records[0].ExternalID)
}

func TestExtractFailsWhenAllLocationsFail(t *testing.T) {
	src := &listSource{name: "zillow", enabled: true}
	src.searchErr = errors.New(errors.ErrorTypeSource, "upstream down")
	rt, err := router.New("zillow", src)
	require.NoError(t, err)

	p, err := newPipeline(testDeps(t, rt, newTestStore(t)), nil)
	require.NoError(t, err)

	_, err = p.Extract(context.Background())
	assert.Error(t, err)
}

func TestTransformDropsInvalidRecords(t *testing.T) {
	src := &listSource{name: "zillow", enabled: true}
	rt, err := router.New("zillow", src)
	require.NoError(t, err)

	p, err := newPipeline(testDeps(t, rt, newTestStore(t)), nil)
	require.NoError(t, err)

	records := []*models.PropertyRecord{
		{ExternalID: "p1", Source: "zillow", Address: models.Address{Street: "123 Main St"}},
		{ExternalID: "", Source: "zillow", Address: models.Address{Street: "456 Oak Ave"}},
	}
	out, err := p.Transform(context.Background(), records)
	require.NoError(t, err)
	assert.Len(t, out.([]*models.PropertyRecord), 1)
}
