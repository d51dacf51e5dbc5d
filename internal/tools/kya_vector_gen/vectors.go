package main

import (
	"fmt"

	"github.com/google/uuid"
)

// fixture is a vector input kept as JSON text so number literals and key
// order survive into the written file.
type fixture struct {
	name  string
	input string
}

// derivedID is a stable name-based UUID for fixtures that need realistic ids.
func derivedID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://kya.dev/vectors/"+name)).String()
}

func fixtures() []fixture {
	return []fixture{
		{"001_purchase_basic", `{
  "workspace_id": "22222222-2222-2222-2222-222222222222",
  "agent_id": "11111111-1111-1111-1111-111111111111",
  "action_type": "purchase",
  "target_service": "stripe_proxy",
  "payload": {"tool": "purchase", "currency": "EUR", "amount": 18},
  "capability_jti": "33333333-3333-3333-3333-333333333333"
}`},
		{"002_nested_payload", `{
  "target_service": "crm_api",
  "payload": {
    "items": [
      {"sku": "A-1", "qty": 2, "tags": ["x", "y"]},
      {"sku": "B-7", "qty": 1, "tags": []}
    ],
    "options": {"dry_run": false, "notify": true, "note": null},
    "meta": {}
  },
  "capability_jti": "cap-jti-nested",
  "action_type": "crm.update",
  "agent_id": "agent-7",
  "workspace_id": "ws-1"
}`},
		{"003_unicode_keys", `{
  "agent_id": "a", "workspace_id": "w", "action_type": "translate",
  "target_service": "i18n", "capability_jti": "j",
  "payload": {"é": 1, "z": 2, "a": 3, "ä": 4, "text": "café 日本語", "Ω": "omega"}
}`},
		{"004_string_escapes", `{
  "agent_id": "a", "workspace_id": "w", "action_type": "log",
  "target_service": "sink", "capability_jti": "j",
  "payload": {
    "quote": "say \"hi\"",
    "backslash": "C:\\temp",
    "newline": "line1\nline2",
    "tab": "a\tb",
    "control": "\u0001\u001f",
    "html": "<b>&amp;</b>",
    "separator": "x\u2028y",
    "del": "\u007f"
  }
}`},
		{"005_numbers", `{
  "agent_id": "a", "workspace_id": "w", "action_type": "pay",
  "target_service": "ledger", "capability_jti": "j",
  "payload": {
    "zero": 0, "negative": -42, "int": 12345678901234, "half": 18.5,
    "tenth": 0.1, "neg_frac": -2.25, "small": 0.000123, "list": [1, 2.5, -3]
  }
}`},
		{"006_derived_ids", fmt.Sprintf(`{
  "workspace_id": %q,
  "agent_id": %q,
  "action_type": "refund",
  "target_service": "stripe_proxy",
  "payload": {"order_id": %q, "amount": 7, "currency": "USD", "reason": "duplicate"},
  "capability_jti": %q
}`, derivedID("workspace"), derivedID("agent"), derivedID("order"), derivedID("capability"))},
	}
}
