// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Each event kind
// can be switched off in config, and a quiet-hours window holds back
// everything except high-priority events when allow_critical is set.
//
// Pipeline code depends only on the Service interface; the notifier is
// constructed by the caller and passed in.
package notifications
