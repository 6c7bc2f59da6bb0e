// Package httpbridge exposes the MCP service over the streamable-HTTP
// transport, one internal session.Session per HTTP-level MCP session. A
// new connection without an existing Mcp-Session-Id gets a fresh Session
// with its own sandbox lifecycle, operation monitor, and shell pool,
// registered so /healthz-style introspection and eventual cleanup can find
// it by id.
package httpbridge

import (
	"log"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mfateev/mcpsandboxd/internal/mcpservice"
	"github.com/mfateev/mcpsandboxd/internal/session"
)

// Bridge owns the session Registry backing a streamable-HTTP deployment
// and the http.Handler that serves it.
type Bridge struct {
	opts     mcpservice.Options
	registry *session.Registry
	logger   *log.Logger
}

// New builds a Bridge that mints a fresh Session (and backing *mcp.Server)
// for each new HTTP-level MCP connection, using opts as the template for
// every session's catalog, sandbox manager, and pool configuration.
func New(opts mcpservice.Options, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Default()
	}
	return &Bridge{opts: opts, registry: session.NewRegistry(), logger: logger}
}

// sessionHeader is the streamable-HTTP transport's session-correlation
// header, per the MCP spec and the original bridge's test suite.
const sessionHeader = "Mcp-Session-Id"

// Handler returns the http.Handler to mount, typically at "/mcp". A request
// against an id already in the registry but terminated (explicit roots
// change after lock, DELETE, or any other terminal FSM transition) is
// rejected before it ever reaches the MCP transport: a terminated session
// accepts no further requests.
func (b *Bridge) Handler() http.Handler {
	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		server, sess := mcpservice.Build(b.opts)
		b.registry.Add(sess)
		b.logger.Printf("httpbridge: new session %s from %s", sess.ID, r.RemoteAddr)
		return server
	}, &mcp.StreamableHTTPOptions{})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(sessionHeader); id != "" {
			if sess := b.registry.Get(id); sess != nil && sess.FSM.Current().Phase.Terminal() {
				http.Error(w, "session terminated", http.StatusNotFound)
				return
			}
		}
		mcpHandler.ServeHTTP(w, r)
	})
}

// Sessions returns the live session registry, mostly for metrics/tests.
func (b *Bridge) Sessions() *session.Registry {
	return b.registry
}
