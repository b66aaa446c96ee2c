package restapi

import "github.com/hearthdata/hearth/pkg/connector/registry"

func init() {
	// Register the generic REST connector type
	_ = registry.Register("restapi", New)
}
