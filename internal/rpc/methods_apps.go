package rpc

import (
	"context"
	"encoding/json"
	"sort"
)

// AppInfo is one entry in the apps.list RPC response: an MCP server the
// session did (or tried to) connect to, generalized from the teacher's
// per-tool McpConnectionManager.InitResult into a per-app registry shape
// (spec §6).
type AppInfo struct {
	ID         string `json:"id"`
	Accessible bool   `json:"accessible"`
	ToolCount  int    `json:"tool_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// AppRegistry answers apps.list from a snapshot of a session's MCP
// connection outcome. It holds no live connections of its own; a new
// snapshot replaces the old one wholesale via SetApps.
type AppRegistry struct {
	apps []AppInfo
}

// NewAppRegistry builds a registry from mcp.InitResult-shaped inputs:
// toolCounts is the per-server count of successfully discovered tools
// (accessible servers), failures is server name to error message
// (inaccessible servers).
func NewAppRegistry(toolCounts map[string]int, failures map[string]string) *AppRegistry {
	r := &AppRegistry{}
	r.SetApps(toolCounts, failures)
	return r
}

// SetApps replaces the registry's snapshot, e.g. after an MCP
// reinitialization.
func (r *AppRegistry) SetApps(toolCounts map[string]int, failures map[string]string) {
	apps := make([]AppInfo, 0, len(toolCounts)+len(failures))
	for id, count := range toolCounts {
		apps = append(apps, AppInfo{ID: id, Accessible: true, ToolCount: count})
	}
	for id, errMsg := range failures {
		apps = append(apps, AppInfo{ID: id, Accessible: false, Error: errMsg})
	}
	sortApps(apps)
	r.apps = apps
}

// sortApps orders accessible entries first, then the rest, stable by id —
// the ordering spec.md §6 requires of apps.list.
func sortApps(apps []AppInfo) {
	sort.SliceStable(apps, func(i, j int) bool {
		if apps[i].Accessible != apps[j].Accessible {
			return apps[i].Accessible
		}
		return apps[i].ID < apps[j].ID
	})
}

type appsListParams struct {
	Limit  int    `json:"limit,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

type appsListResult struct {
	Data       []AppInfo `json:"data"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// RegisterAppsMethods binds apps.list onto p.
func RegisterAppsMethods(p *Processor, reg *AppRegistry) {
	p.Register("apps.list", reg.handleList)
}

func (r *AppRegistry) handleList(_ context.Context, params json.RawMessage) (interface{}, *Error) {
	var req appsListParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &Error{Code: CodeInvalidInput, Message: "apps.list: " + err.Error()}
		}
	}

	start := 0
	if req.Cursor != "" {
		start = len(r.apps)
		for i, a := range r.apps {
			if a.ID == req.Cursor {
				start = i + 1
				break
			}
		}
	}
	if start > len(r.apps) {
		start = len(r.apps)
	}

	page := r.apps[start:]
	result := appsListResult{Data: page}
	if req.Limit > 0 && len(page) > req.Limit {
		result.Data = page[:req.Limit]
		result.NextCursor = result.Data[len(result.Data)-1].ID
	}
	return result, nil
}
