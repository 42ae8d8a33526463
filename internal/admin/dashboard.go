package admin

import (
	"context"
	"fmt"

	"github.com/wolfman30/docbook-web/internal/apiclient"
)

// StatsAPI is the backend surface the dashboard uses.
type StatsAPI interface {
	AdminStats(ctx context.Context) (*apiclient.Stats, error)
}

// Dashboard loads the admin counters.
type Dashboard struct {
	api StatsAPI
	options
}

func NewDashboard(api StatsAPI, opts ...Option) *Dashboard {
	return &Dashboard{api: api, options: buildOptions(opts)}
}

// Load returns the counters, or nil with the error when the fetch failed.
// The page renders without counters in that case.
func (d *Dashboard) Load(ctx context.Context) (*apiclient.Stats, error) {
	stats, err := d.api.AdminStats(ctx)
	if err != nil {
		d.logger.Warn("failed to load dashboard stats", "error", err)
		return nil, fmt.Errorf("admin: dashboard: %w", err)
	}
	return stats, nil
}
