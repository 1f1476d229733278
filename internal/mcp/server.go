// Package mcp exposes the report service as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"jama-reports/internal/report"
)

// Server holds the state for the MCP server.
type Server struct {
	svc    *report.Service
	server *sdk.Server
	charts bool
}

// NewServer creates a new MCP server and registers every tool. When charts
// is set, responses carry a Mermaid diagram next to the JSON payload.
func NewServer(svc *report.Service, version string, charts bool) *Server {
	s := &Server{
		svc:    svc,
		server: sdk.NewServer(&sdk.Implementation{Name: "jama-reports", Version: version}, nil),
		charts: charts,
	}
	s.registerTools()
	return s
}

// Serve runs the server over stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	log.Info().Msg("MCP server listening on stdio")
	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// addTool registers a handler returning a ResponseEnvelope.
func addTool[In any](s *Server, name, description string, h func(context.Context, In) (ResponseEnvelope, error)) {
	sdk.AddTool(s.server, &sdk.Tool{Name: name, Description: description},
		func(ctx context.Context, _ *sdk.CallToolRequest, in In) (*sdk.CallToolResult, any, error) {
			start := time.Now()
			env, err := h(ctx, in)
			if err != nil {
				log.Error().Err(err).Str("tool", name).Msg("Tool call failed")
				return nil, nil, err
			}
			log.Debug().Str("tool", name).Dur("took", time.Since(start)).Msg("Tool call finished")
			return s.formatResult(env), nil, nil
		})
}

func (s *Server) formatResult(env ResponseEnvelope) *sdk.CallToolResult {
	chart := env.Chart
	if !s.charts {
		env.Chart = ""
	}
	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		out = fmt.Appendf(nil, `{"error": %q}`, err.Error())
	}
	res := &sdk.CallToolResult{Content: []sdk.Content{&sdk.TextContent{Text: string(out)}}}
	if s.charts && chart != "" {
		res.Content = append(res.Content, &sdk.TextContent{Text: chart})
	}
	return res
}
