// Package keys is a local filesystem store for agent signing keys.
//
// Each named key lives at <dir>/<name>/agent.key as a JSON object holding the
// base64 public and secret keys. Per-agent subkeys derived from a named key
// live at <dir>/<name>/agents/<agent>.key and are addressed as "name/agent".
//
// Files are created with mode 0600 and never overwritten unless asked.
package keys
