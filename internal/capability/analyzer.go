// Package capability defines the contract of the external tool capability
// analyzer and the disabled-tools cache consulted before calling it.
package capability

import (
	"context"
	"fmt"
)

// Request describes one MCP tool to classify.
type Request struct {
	ToolName    string         `json:"toolName"`
	Description string         `json:"description"`
	ServerName  string         `json:"serverName"`
	EndpointID  string         `json:"endpointId"`
	Arguments   map[string]any `json:"arguments,omitempty"`
}

// Reasoning explains each capability verdict.
type Reasoning struct {
	Read  string `json:"read"`
	Write string `json:"write"`
}

// Result is the analyzer's verdict for one tool.
type Result struct {
	CanRead   bool      `json:"canRead"`
	CanWrite  bool      `json:"canWrite"`
	Reasoning Reasoning `json:"reasoning"`
}

// Analyzer classifies whether a tool can read or write data. The collector
// never calls it; downstream decision layers do.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Result, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, req Request) (Result, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

// Outcome pairs a request with its analysis.
type Outcome struct {
	Request  Request `json:"request"`
	Result   Result  `json:"result"`
	Disabled bool    `json:"disabled,omitempty"`
	Err      error   `json:"-"`
}

// AnalyzeAll runs a over reqs, skipping tools that disabled reports as
// turned off. A nil disabled cache analyzes everything. A failed lookup
// of the disabled set is returned before any analysis runs.
func AnalyzeAll(ctx context.Context, a Analyzer, disabled *DisabledTools, reqs []Request) ([]Outcome, error) {
	out := make([]Outcome, 0, len(reqs))
	for _, req := range reqs {
		if disabled != nil {
			off, err := disabled.IsDisabled(ctx, req.ServerName, req.ToolName)
			if err != nil {
				return nil, fmt.Errorf("disabled tools lookup: %w", err)
			}
			if off {
				out = append(out, Outcome{Request: req, Disabled: true})
				continue
			}
		}
		res, err := a.Analyze(ctx, req)
		out = append(out, Outcome{Request: req, Result: res, Err: err})
	}
	return out, nil
}
