// Package admin serves the management surface: a JSON API for config
// updates, certificate uploads, traffic log queries, and audit trail
// reads, plus the embedded HTML dashboard driven by that API.
//
// Everything lives under the reserved /ui prefix. The server mounts the
// Handler on its listener (or on a dedicated admin listener); requests
// outside the reserved prefixes keep flowing to the proxy.
//
// Mutations go through the ConfigManager: validate against a copy of
// the running config, persist, apply to the live forwarding path, then
// swap the copy in. A failure at any step leaves the running config
// untouched. Only the runtime-adjustable settings are exposed; anything
// else requires an edit to the config file and a restart.
//
// Certificate uploads land under fixed slot names (client.crt,
// client.key, ca.crt) so the identity paths in the config stay stable
// across rotations. Each validated upload triggers a live identity
// reload; a reload failure mid-rotation is logged and retried on the
// next upload.
package admin
