package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"fabula/internal/retrieval"
	"fabula/internal/store"
)

type Server struct {
	db     store.Store
	engine *retrieval.Engine
	mcp    *sdk.Server
}

func NewServer(db store.Store, engine *retrieval.Engine, version string) *Server {
	s := &Server{
		db:     db,
		engine: engine,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "fabula",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
