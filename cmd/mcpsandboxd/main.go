// Command mcpsandboxd runs the sandboxed command-line tool server: it
// speaks MCP over stdio or a streamable-HTTP bridge, confines every
// dispatched command to the client-granted root set, and exposes the
// externally-configured tool catalog under internal/toolconfig.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mfateev/mcpsandboxd/internal/config"
	"github.com/mfateev/mcpsandboxd/internal/execpolicy"
	"github.com/mfateev/mcpsandboxd/internal/httpbridge"
	"github.com/mfateev/mcpsandboxd/internal/mcpservice"
	"github.com/mfateev/mcpsandboxd/internal/sandbox"
	"github.com/mfateev/mcpsandboxd/internal/shellpool"
	"github.com/mfateev/mcpsandboxd/internal/toolconfig"
	"github.com/mfateev/mcpsandboxd/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == shellpool.WorkerFlag {
		mode := shellpool.ModePipe
		if len(os.Args) > 2 {
			mode = shellpool.Mode(os.Args[2])
		}
		if err := shellpool.RunWorker(os.Stdin, os.Stdout, mode); err != nil {
			log.Fatalf("mcpsandboxd: shell worker exited: %v", err)
		}
		return
	}

	// landlockManager.Build re-invokes this binary as "self --landlock-exec
	// -- program args...", carrying the write scope via MCPSANDBOXD_LANDLOCK_SCOPE
	// (sandbox.ScopeEnv), so the ruleset can be installed strictly before exec.
	if len(os.Args) > 1 && os.Args[1] == "--landlock-exec" {
		if len(os.Args) < 4 || os.Args[2] != "--" {
			log.Fatalf("mcpsandboxd: --landlock-exec requires: --landlock-exec -- <program> [args...]")
		}
		program := os.Args[3]
		args := os.Args[4:]
		var scopePaths []string
		for _, p := range strings.Split(os.Getenv(sandbox.ScopeEnv), ":") {
			if p != "" {
				scopePaths = append(scopePaths, p)
			}
		}
		if err := sandbox.ApplyAndExec(scopePaths, program, args); err != nil {
			log.Fatalf("mcpsandboxd: landlock exec: %v", err)
		}
		return
	}

	cfg, err := config.Load(os.Getenv("MCPSANDBOXD_CONFIG"))
	if err != nil {
		log.Fatalf("mcpsandboxd: %v", err)
	}
	cfg.BindFlags(flag.CommandLine)
	logDestination := flag.String("log-destination", "stderr", "stderr, or a file path to append logs to")
	flag.Parse()

	if err := redirectLog(*logDestination); err != nil {
		log.Fatalf("mcpsandboxd: %v", err)
	}

	if cfg.TestMode {
		os.Setenv(sandbox.TestModeEnv, "1")
	}

	if sandbox.DetectNested() && !cfg.NoSandbox && !sandbox.NoSandboxRequested(os.Args[1:]) {
		fmt.Fprintf(os.Stderr,
			"SECURITY ERROR: mcpsandboxd appears to be running inside an outer sandbox that would "+
				"prevent it from installing its own confinement. Re-run with %s or set %s=1 to "+
				"proceed without sandboxing (NOT recommended outside a trusted CI container).\n",
			sandbox.EscapeHatchFlag, sandbox.EscapeHatchEnv)
		os.Exit(1)
	}

	if cfg.ToolsDir == "" {
		log.Fatal("mcpsandboxd: -tools-dir is required")
	}
	configs, err := toolconfig.LoadDir(cfg.ToolsDir)
	if err != nil {
		log.Fatalf("mcpsandboxd: %v", err)
	}
	toolconfig.CheckAllAvailability(context.Background(), configs, toolconfig.DefaultProbe)
	catalog := toolconfig.NewCatalog(configs)
	log.Printf("mcpsandboxd: loaded %d tools from %s", len(catalog.All()), cfg.ToolsDir)

	policy, err := execpolicy.LoadExecPolicy(cfg.ToolsDir)
	if err != nil {
		log.Fatalf("mcpsandboxd: %v", err)
	}

	var mechanism sandbox.Mechanism
	if cfg.NoSandbox {
		mechanism = sandbox.MechanismNoop
	} else {
		mechanism = sandbox.Mechanism(cfg.SandboxMechanism)
	}
	mgr, err := sandbox.NewManager(mechanism)
	if err != nil {
		log.Fatalf("mcpsandboxd: %v", err)
	}

	opts := mcpservice.Options{
		Name:       "mcpsandboxd",
		Version:    version.GitCommit,
		Catalog:    catalog,
		SandboxMgr: mgr,
		PoolConfig: cfg.ResolvePool(),
		ClientType: cfg.ResolveClientType(),
		Policy:     policy,
	}

	if cfg.HTTPAddr != "" {
		runHTTP(opts, cfg.HTTPAddr)
		return
	}
	runStdio(opts)
}

// redirectLog points the package-level logger at destination: "stderr"
// (the default) or a file path to append to. "stdout" is rejected outright
// in every transport mode; in stdio mode stdout is the MCP wire itself.
func redirectLog(destination string) error {
	switch destination {
	case "", "stderr":
		log.SetOutput(os.Stderr)
		return nil
	case "stdout":
		return fmt.Errorf("-log-destination=stdout would corrupt the stdio MCP transport; use stderr or a file path")
	default:
		f, err := os.OpenFile(destination, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log destination %s: %w", destination, err)
		}
		log.SetOutput(f)
		return nil
	}
}

func runStdio(opts mcpservice.Options) {
	server, _ := mcpservice.Build(opts)
	log.Print("mcpsandboxd: ready on stdio")
	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("mcpsandboxd: stdio transport: %v", err)
	}
}

func runHTTP(opts mcpservice.Options, addr string) {
	bridge := httpbridge.New(opts, log.Default())
	httpServer := &http.Server{Addr: addr, Handler: bridge.Handler()}
	log.Printf("mcpsandboxd: ready on http://%s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("mcpsandboxd: http transport: %v", err)
	}
}
