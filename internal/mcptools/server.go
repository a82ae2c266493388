package mcptools

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/reflect-o-bot/internal/service"
)

const serverName = "reflect-o-bot journal"

// JournalMCPServer exposes the journal service as MCP tools over stdio.
type JournalMCPServer struct {
	mcpServer *server.MCPServer
	svc       *service.JournalService
	logger    *zap.Logger
}

// NewJournalMCPServer builds the server and registers every journal tool.
func NewJournalMCPServer(svc *service.JournalService, version string, logger *zap.Logger) *JournalMCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithLogging(),
		server.WithRecovery(),
	)
	js := &JournalMCPServer{mcpServer: s, svc: svc, logger: logger}

	RegisterPingTool(s)
	js.RegisterAddEntryTool()
	js.RegisterListEntriesTool()
	js.RegisterAnalyzeEntryTool()
	js.RegisterChatTool()
	return js
}

func (s *JournalMCPServer) MCPRawServer() *server.MCPServer {
	return s.mcpServer
}

// Start serves on stdin/stdout until the client disconnects.
func (s *JournalMCPServer) Start() error {
	s.logger.Sugar().Infow("starting MCP stdio server")
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}
