// Package notify delivers job lifecycle events via an ntfy-style webhook.
//
// The default implementation POSTs to the webhook URL configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Worker code depends only on the Service interface, so alternative
// transports slot in without touching stage handlers.
package notify
