// Package main is the entry point for mcproxy, the MCP aggregating proxy.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/samteezy/mcproxy/internal/logsink"
	"github.com/samteezy/mcproxy/internal/resolver"
	"github.com/samteezy/mcproxy/internal/supervisor"
)

const (
	mcproxyGreen = "\033[38;2;23;128;68m"
	bold         = "\033[1m"
	reset        = "\033[0m"
)

const banner = `
 ███╗   ███╗ ██████╗██████╗ ██████╗  ██████╗ ██╗  ██╗██╗   ██╗
 ████╗ ████║██╔════╝██╔══██╗██╔══██╗██╔═══██╗╚██╗██╔╝╚██╗ ██╔╝
 ██╔████╔██║██║     ██████╔╝██████╔╝██║   ██║ ╚███╔╝  ╚████╔╝
 ██║╚██╔╝██║██║     ██╔═══╝ ██╔══██╗██║   ██║ ██╔██╗   ╚██╔╝
 ██║ ╚═╝ ██║╚██████╗██║     ██║  ██║╚██████╔╝██╔╝ ██╗   ██║
 ╚═╝     ╚═╝ ╚═════╝╚═╝     ╚═╝  ╚═╝ ╚═════╝ ╚═╝  ╚═╝   ╚═╝
`

func printBanner() {
	fmt.Print(mcproxyGreen + bold + banner + reset + "\n")
}

func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}
	configEnv := filepath.Join(homeDir, ".config", "mcproxy", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}
	_ = godotenv.Load()
}

func setupLogging(debug bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func printHelp() {
	printBanner()
	fmt.Println("mcproxy - MCP aggregating proxy")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mcproxy [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -c, --config FILE   Path to config file (default ./mcproxy.config.json)")
	fmt.Println("      --init          Write an example config file and exit")
	fmt.Println("  -d, --debug         Enable debug logging")
	fmt.Println("  -h, --help          Show this help message")
}

func main() {
	fs := flag.NewFlagSet("mcproxy", flag.ContinueOnError)
	configPath := fs.String("c", "./mcproxy.config.json", "path to config file")
	fs.StringVar(configPath, "config", "./mcproxy.config.json", "path to config file")
	debug := fs.Bool("d", false, "enable debug logging")
	fs.BoolVar(debug, "debug", false, "enable debug logging")
	initFlag := fs.Bool("init", false, "write an example config file and exit")
	help := fs.Bool("h", false, "show help")
	fs.BoolVar(help, "help", false, "show help")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if *help {
		printHelp()
		os.Exit(0)
	}
	if *initFlag {
		printBanner()
		if err := writeExampleConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write example config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote example config to %s\n", *configPath)
		os.Exit(0)
	}

	loadEnvFiles()
	setupLogging(*debug)
	printBanner()

	sink := logsink.New()
	log.Logger = log.Logger.Hook(logsink.NewHook(sink))

	sup := supervisor.New(*configPath, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sup.Start(ctx); err != nil {
		log.Error().Err(err).Msg("mcproxy failed to start")
		os.Exit(1)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	cfgTransport, adminAddr, mcpAddr := downstreamAddrs(sup)

	adminSrv := &http.Server{Addr: adminAddr, Handler: sup.AdminMux()}
	go func() {
		if adminAddr == "" {
			return
		}
		log.Info().Str("addr", adminAddr).Msg("admin server listening")
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("admin server error")
		}
	}()

	mcpServer := buildMCPServer(sup)

	errCh := make(chan error, 1)
	go func() {
		errCh <- serveDownstream(ctx, cfgTransport, mcpAddr, mcpServer)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("mcproxy server error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = adminSrv.Shutdown(shutdownCtx)
	sup.Stop()

	log.Info().Msg("mcproxy stopped")
}

// downstreamAddrs reports the downstream transport kind and the addresses
// the admin HTTP server and the MCP server itself should bind, read
// straight from the config file: the supervisor's graph is rebuilt on
// reload and doesn't expose the raw struct outside that boundary, and
// transport/port are fixed for the process lifetime regardless of reload.
func downstreamAddrs(sup *supervisor.Supervisor) (resolver.Transport, string, string) {
	ds, err := loadDownstreamConfig(sup.ConfigPath())
	if err != nil {
		log.Warn().Err(err).Msg("could not re-read downstream config, defaulting to stdio")
		return resolver.TransportStdio, "", ""
	}
	mcpAddr := fmt.Sprintf("%s:%d", ds.Host, ds.Port)
	adminAddr := ""
	if ds.AdminPort > 0 {
		adminHost := ds.Host
		if adminHost == "" {
			adminHost = "127.0.0.1"
		}
		adminAddr = fmt.Sprintf("%s:%d", adminHost, ds.AdminPort)
	}
	return ds.Transport, adminAddr, mcpAddr
}

func serveDownstream(ctx context.Context, transport resolver.Transport, addr string, s *server.MCPServer) error {
	switch transport {
	case resolver.TransportStdio:
		return server.ServeStdio(s)
	case resolver.TransportStreamableHTTP:
		httpServer := server.NewStreamableHTTPServer(s, server.WithEndpointPath("/mcp"))
		return httpServer.Start(addr)
	case resolver.TransportSSE:
		sseServer := server.NewSSEServer(s, server.WithSSEEndpoint("/sse"), server.WithMessageEndpoint("/messages"))
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("mcproxy: unknown downstream transport %q", transport)
	}
}

// buildMCPServer wires mcp-go's server-side protocol handling to the
// handler's dynamic, policy-resolved tool/resource/prompt surface. Tools,
// resources, and prompts are (re)registered from the handler's live
// catalog on startup and then every catalogSyncInterval by watchCatalog, so
// upstream connects and config reloads show up within that interval without
// restarting the process.
func buildMCPServer(sup *supervisor.Supervisor) *server.MCPServer {
	s := server.NewMCPServer("mcproxy", Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithPromptCapabilities(true),
	)
	syncCatalog(context.Background(), sup, s)
	go watchCatalog(sup, s)
	return s
}

// syncCatalog re-registers every tool/resource/prompt in the handler's
// current catalog. mcp-go's AddTool overwrites any existing registration
// for the same name, so current entries stay up to date; entries that have
// left the catalog since an earlier sync are not removed.
func syncCatalog(ctx context.Context, sup *supervisor.Supervisor, s *server.MCPServer) {
	h := sup.Handler()

	for _, tool := range h.ListTools(ctx) {
		name := tool.Name
		s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return sup.Handler().CallTool(ctx, name, req.Params.Arguments)
		})
	}
	for _, res := range h.ListResources(ctx) {
		uri := res.URI
		s.AddResource(res, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			result, err := sup.Handler().ReadResource(ctx, uri)
			if err != nil {
				return nil, err
			}
			return result.Contents, nil
		})
	}
	for _, p := range h.ListPrompts(ctx) {
		name := p.Name
		s.AddPrompt(p, func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			return sup.Handler().GetPrompt(ctx, name, req.Params.Arguments)
		})
	}
}

const catalogSyncInterval = 30 * time.Second

// watchCatalog periodically re-syncs the MCP server's registered catalog
// against the handler, picking up upstream reconnects, catalog refreshes,
// and post-reload graphs without requiring an explicit reload webhook into
// this process.
func watchCatalog(sup *supervisor.Supervisor, s *server.MCPServer) {
	ticker := time.NewTicker(catalogSyncInterval)
	defer ticker.Stop()
	for range ticker.C {
		syncCatalog(context.Background(), sup, s)
	}
}
