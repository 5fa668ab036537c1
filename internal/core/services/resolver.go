package services

import (
	"path"
	"strings"

	"github.com/megu-dl/megu/internal/core/domain"
	"github.com/megu-dl/megu/internal/core/ports/driven"
	"github.com/megu-dl/megu/internal/core/ports/driving"
	"github.com/megu-dl/megu/internal/logger"
)

// Ensure PluginResolver implements the interface.
var _ driving.PluginResolver = (*PluginResolver)(nil)

// PluginResolver selects the plugin responsible for a URL from a static,
// ordered registry populated at process start. How plugins are found is
// not this service's concern; callers inject the registered set.
type PluginResolver struct {
	plugins  []driven.Plugin
	fallback driven.Plugin
}

// NewPluginResolver creates a resolver over the registered plugins.
// Plugins are consulted in registration order. The fallback plugin is
// returned when no registered plugin matches; it must not be nil.
func NewPluginResolver(fallback driven.Plugin, plugins ...driven.Plugin) *PluginResolver {
	return &PluginResolver{
		plugins:  plugins,
		fallback: fallback,
	}
}

// Resolve returns the first registered plugin whose domain patterns match
// the URL's hostname and whose CanHandle accepts the URL. Resolution
// never fails: when nothing matches, the fallback plugin is returned.
func (r *PluginResolver) Resolve(u domain.URL) driven.Plugin {
	hostname := u.Hostname()

	for _, plugin := range r.plugins {
		if !matchesDomain(plugin.Domains(), hostname) {
			logger.Debug("Skipping plugin %s: %s not in declared domains", plugin.Name(), hostname)
			continue
		}

		if !safeCanHandle(plugin, u) {
			logger.Debug("Skipping plugin %s: cannot handle %s", plugin.Name(), u)
			continue
		}

		logger.Info("Plugin %s handles %s", plugin.Name(), u)
		return plugin
	}

	logger.Info("No plugin found for %s, falling back to %s", u, r.fallback.Name())
	return r.fallback
}

// matchesDomain reports whether any of the glob patterns matches the
// hostname. Matching is case-insensitive; malformed patterns match
// nothing.
func matchesDomain(patterns []string, hostname string) bool {
	for _, pattern := range patterns {
		ok, err := path.Match(strings.ToLower(pattern), hostname)
		if err != nil {
			logger.Warn("Ignoring malformed domain pattern %q: %v", pattern, err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// safeCanHandle asks a plugin whether it handles the URL, treating a
// panic as "cannot handle" so one broken plugin does not block
// resolution against the others.
func safeCanHandle(plugin driven.Plugin, u domain.URL) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Plugin %s panicked in CanHandle(%s): %v", plugin.Name(), u, r)
			ok = false
		}
	}()

	return plugin.CanHandle(u)
}
