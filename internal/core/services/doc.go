// Package services implements the core pipeline logic.
//
// Services implement the driving ports and depend only on domain types
// and driven ports:
//
//   - PluginResolver: Selects the plugin responsible for a URL
//   - Content filters: Narrow the discovery stream (BestContent et al.)
//   - Pipeline: The resolve → filter → download → finalize orchestrator
package services
