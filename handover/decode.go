// SPDX-License-Identifier: LGPL-3.0-or-later

package handover

import (
	"encoding/json"
	"fmt"

	"github.com/kktp-network/kktp/canonical"
	"github.com/kktp-network/kktp/schema"
	"github.com/kktp-network/kktp/wire"
)

// handoverIntent is the plaintext marker looked for inside authenticated
// messages on a predecessor mailbox (spec §4.9 step 2).
type handoverIntent struct {
	Intent    string          `json:"intent"`
	NewSID    string          `json:"new_sid"`
	NewAnchor *wire.Discovery `json:"new_anchor"`
}

func decodeDiscovery(body string) (*wire.Discovery, error) {
	tree, err := canonical.Parse([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("handover: parse discovery: %w", err)
	}
	if err := schema.ValidateDiscovery(tree); err != nil {
		return nil, fmt.Errorf("handover: %w", err)
	}
	var d wire.Discovery
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return nil, fmt.Errorf("handover: decode discovery: %w", err)
	}
	return &d, nil
}

func decodeResponse(body string) (*wire.Response, error) {
	tree, err := canonical.Parse([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("handover: parse response: %w", err)
	}
	if err := schema.ValidateResponse(tree); err != nil {
		return nil, fmt.Errorf("handover: %w", err)
	}
	var r wire.Response
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("handover: decode response: %w", err)
	}
	return &r, nil
}

func decodeMsg(body string) (*wire.Msg, error) {
	tree, err := canonical.Parse([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("handover: parse msg: %w", err)
	}
	if err := schema.ValidateMsg(tree); err != nil {
		return nil, fmt.Errorf("handover: %w", err)
	}
	var m wire.Msg
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return nil, fmt.Errorf("handover: decode msg: %w", err)
	}
	return &m, nil
}

// tryDecodeHandoverIntent reports whether plaintext carries a handover
// intent marker, per spec §4.9 step 2's "{intent: handover, new_sid,
// new_anchor}".
func tryDecodeHandoverIntent(plaintext []byte) (*handoverIntent, bool) {
	var marker handoverIntent
	if err := json.Unmarshal(plaintext, &marker); err != nil {
		return nil, false
	}
	if marker.Intent != "handover" || marker.NewAnchor == nil {
		return nil, false
	}
	return &marker, true
}
