package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthdata/hearth/pkg/config"
	"github.com/hearthdata/hearth/pkg/connector/core"
	"github.com/hearthdata/hearth/pkg/errors"
	"github.com/hearthdata/hearth/pkg/models"
)

type testConnector struct {
	cfg   *config.ConnectorConfig
	stats core.CallStats
}

func (c *testConnector) Name() string        { return c.cfg.Name }
func (c *testConnector) Enabled() bool       { return c.cfg.Enabled }
func (c *testConnector) Authenticated() bool { return c.cfg.Authenticated() }
func (c *testConnector) SearchProperties(context.Context, string, *core.SearchOptions) ([]core.RawRecord, error) {
	return nil, nil
}
func (c *testConnector) GetPropertyDetails(context.Context, string) (core.RawRecord, error) {
	return nil, nil
}
func (c *testConnector) GetMarketTrends(context.Context, string, *core.TrendOptions) (core.RawRecord, error) {
	return nil, nil
}
func (c *testConnector) StandardizeProperty(core.RawRecord) (*models.PropertyRecord, error) {
	return nil, nil
}
func (c *testConnector) Stats() *core.CallStats      { return &c.stats }
func (c *testConnector) Close(context.Context) error { return nil }

func testFactory(cfg *config.ConnectorConfig) (core.Connector, error) {
	return &testConnector{cfg: cfg}, nil
}

func TestRegisterAndCreate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("test", testFactory))

	c, err := r.Create(&config.ConnectorConfig{Name: "zillow", Type: "test", Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, "zillow", c.Name())
	assert.True(t, c.Enabled())
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("test", testFactory))
	assert.Error(t, r.Register("test", testFactory))
}

func TestCreateUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(&config.ConnectorConfig{Name: "x", Type: "missing"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestListIsSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("zeta", testFactory))
	require.NoError(t, r.Register("alpha", testFactory))

	assert.Equal(t, []string{"alpha", "zeta"}, r.List())
	assert.True(t, r.Has("alpha"))
	assert.False(t, r.Has("omega"))
}
