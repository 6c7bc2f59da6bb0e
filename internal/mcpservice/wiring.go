package mcpservice

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mfateev/mcpsandboxd/internal/callback"
	"github.com/mfateev/mcpsandboxd/internal/session"
)

// serverSessionRoots adapts a connected *mcp.ServerSession to RootsLister by
// issuing the server-initiated roots/list request and flattening the
// result to canonicalizable path/URI strings.
type serverSessionRoots struct {
	session *mcp.ServerSession
}

func (r serverSessionRoots) ListRoots(ctx context.Context) ([]string, error) {
	result, err := r.session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return nil, err
	}
	roots := make([]string, 0, len(result.Roots))
	for _, root := range result.Roots {
		roots = append(roots, root.URI)
	}
	return roots, nil
}

// rootsListerFor extracts the calling client's session from req, if the
// transport provided one (stdio and streamable-HTTP both do).
func rootsListerFor(req *mcp.CallToolRequest) (RootsLister, bool) {
	if req == nil || req.Session == nil {
		return nil, false
	}
	return serverSessionRoots{session: req.Session}, true
}

// progressTokenFor returns the progressToken the client attached to req's
// _meta field, or nil if it sent none.
func progressTokenFor(req *mcp.CallToolRequest) any {
	if req == nil || req.Params == nil || req.Params.Meta == nil {
		return nil
	}
	return req.Params.Meta.ProgressToken
}

// serverSessionSender adapts a *mcp.ServerSession to callback.Sender by
// issuing the notifications/progress call.
type serverSessionSender struct {
	session *mcp.ServerSession
}

func (s serverSessionSender) SendProgress(n callback.Notification) error {
	return s.session.NotifyProgress(context.Background(), &mcp.ProgressNotificationParams{
		ProgressToken: n.ProgressToken,
		Progress:      n.Progress,
		Total:         derefOr(n.Total, 0),
		Message:       n.Message,
	})
}

func derefOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}

// registerSessionTermination installs a receiving middleware on server that
// watches for notifications/roots/list_changed: a session's sandbox scope is
// locked for its lifetime once the handshake completes, so a client that
// reports its roots changed afterward cannot be honored by silently
// re-scoping. The only correct response is to terminate the session, exactly
// as handle_roots_changed does in the original implementation this server
// was modeled on.
//
// AddReceivingMiddleware is the one piece of go-sdk's surface this repo
// could not verify against any file in the retrieved pack — no example
// imports it. If a future SDK version renames or removes it, this fails to
// compile loudly rather than silently never firing.
func registerSessionTermination(server *mcp.Server, sess *session.Session) {
	server.AddReceivingMiddleware(func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method == "notifications/roots/list_changed" {
				sess.Terminate()
			}
			return next(ctx, method, req)
		}
	})
}
