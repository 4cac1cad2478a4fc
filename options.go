package epmod

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	logger        *slog.Logger
	version       string
	workspaceRoot string
	historyPath   *string
	surfacePath   *string
	httpAddr      *string
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported by server_manager and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithWorkspaceRoot overrides the workspace directory from config
// (EPMOD_WORKSPACE_ROOT env var).
func WithWorkspaceRoot(dir string) Option {
	return func(o *resolvedOptions) { o.workspaceRoot = dir }
}

// WithHistoryPath overrides the batch-history database path. An empty
// string disables the audit store.
func WithHistoryPath(path string) Option {
	return func(o *resolvedOptions) { o.historyPath = &path }
}

// WithSurfaceConfigPath overrides the tool-surface document path.
func WithSurfaceConfigPath(path string) Option {
	return func(o *resolvedOptions) { o.surfacePath = &path }
}

// WithHTTPAddr enables the HTTP transport on the given listen address.
// An empty string keeps the server stdio-only.
func WithHTTPAddr(addr string) Option {
	return func(o *resolvedOptions) { o.httpAddr = &addr }
}
