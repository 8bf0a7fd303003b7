package lookup

import (
	"context"
	"fmt"
	"time"

	"mediaguard/internal/keypool"
)

// CheckResult is the connectivity result for one provider credential.
type CheckResult struct {
	Provider string
	Key      string
	OK       bool
	Detail   string
	Latency  time.Duration
}

// TestProviders checks every configured credential directly, outside the
// pool: results are reported, nothing is counted or blocked.
func (c *Client) TestProviders(ctx context.Context) []CheckResult {
	var results []CheckResult
	for _, p := range c.registries {
		for _, key := range p.creds.Keys {
			start := time.Now()
			status, err := p.registry.Status(ctx, key)
			res := CheckResult{Provider: p.name, Key: keypool.Mask(key), Latency: time.Since(start)}
			if err != nil {
				res.Detail = err.Error()
			} else {
				res.OK = true
				res.Detail = fmt.Sprintf("%s %s", status.AppName, status.Version)
			}
			results = append(results, res)
		}
	}
	for _, p := range c.titleDBs {
		for _, key := range p.creds.Keys {
			start := time.Now()
			err := p.titleDB.Check(ctx, key)
			res := CheckResult{Provider: p.name, Key: keypool.Mask(key), Latency: time.Since(start)}
			if err != nil {
				res.Detail = err.Error()
			} else {
				res.OK = true
				res.Detail = "key accepted"
			}
			results = append(results, res)
		}
	}
	return results
}
