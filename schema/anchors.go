// SPDX-License-Identifier: LGPL-3.0-or-later

package schema

var discoveryAllowedFields = map[string]bool{
	"type": true, "version": true, "sid": true,
	"pub_sig": true, "pub_dh": true,
	"vrf_value": true, "vrf_proof": true,
	"sig": true,
}

var responseAllowedFields = map[string]bool{
	"type": true, "version": true, "sid": true,
	"initiator_pub_sig": true, "initiator_pub_dh": true,
	"pub_sig_resp": true, "pub_dh_resp": true,
	"vrf_value": true, "vrf_proof": true,
	"sig_resp": true,
}

var sessionEndAllowedFields = map[string]bool{
	"type": true, "version": true, "sid": true,
	"pub_sig": true, "reason": true,
}

var msgAllowedFields = map[string]bool{
	"type": true, "version": true, "sid": true,
	"mailbox_id": true, "direction": true, "seq": true,
	"nonce": true, "ciphertext": true,
}

// ValidateDiscovery checks raw against the discovery anchor shape.
func ValidateDiscovery(raw interface{}) error {
	d, err := asDoc(raw)
	if err != nil {
		return err
	}
	if err := checkUnknownKeys(d, discoveryAllowedFields, true); err != nil {
		return err
	}
	if err := d.requireType("discovery"); err != nil {
		return err
	}
	if err := d.requireVersion(); err != nil {
		return err
	}
	if _, err := d.requireHex("sid", 32); err != nil {
		return err
	}
	if _, err := d.requireHex("pub_sig", 33); err != nil {
		return err
	}
	if _, err := d.requireHex("pub_dh", 33); err != nil {
		return err
	}
	if _, _, _, err := d.requireVRFPair(); err != nil {
		return err
	}
	if _, err := d.requireVariableHex("sig"); err != nil {
		return err
	}
	if meta, ok := d["meta"]; ok {
		if _, isObj := meta.(map[string]interface{}); !isObj {
			return fieldError("meta", "expected a JSON object")
		}
	}
	return nil
}

// ValidateResponse checks raw against the response anchor shape.
func ValidateResponse(raw interface{}) error {
	d, err := asDoc(raw)
	if err != nil {
		return err
	}
	if err := checkUnknownKeys(d, responseAllowedFields, false); err != nil {
		return err
	}
	if err := d.requireType("response"); err != nil {
		return err
	}
	if err := d.requireVersion(); err != nil {
		return err
	}
	for _, field := range []string{"sid", "initiator_pub_sig", "initiator_pub_dh", "pub_sig_resp", "pub_dh_resp"} {
		byteLen := 33
		if field == "sid" {
			byteLen = 32
		}
		if _, err := d.requireHex(field, byteLen); err != nil {
			return err
		}
	}
	if _, _, _, err := d.requireVRFPair(); err != nil {
		return err
	}
	if _, err := d.requireVariableHex("sig_resp"); err != nil {
		return err
	}
	return nil
}

// ValidateSessionEnd checks raw against the session-end anchor shape.
func ValidateSessionEnd(raw interface{}) error {
	d, err := asDoc(raw)
	if err != nil {
		return err
	}
	if err := checkUnknownKeys(d, sessionEndAllowedFields, false); err != nil {
		return err
	}
	if err := d.requireType("session_end"); err != nil {
		return err
	}
	if err := d.requireVersion(); err != nil {
		return err
	}
	if _, err := d.requireHex("sid", 32); err != nil {
		return err
	}
	if _, err := d.requireHex("pub_sig", 33); err != nil {
		return err
	}
	if _, err := d.requireString("reason"); err != nil {
		return err
	}
	return nil
}

// ValidateMsg checks raw against the authenticated-message shape.
func ValidateMsg(raw interface{}) error {
	d, err := asDoc(raw)
	if err != nil {
		return err
	}
	if err := checkUnknownKeys(d, msgAllowedFields, false); err != nil {
		return err
	}
	if err := d.requireType("msg"); err != nil {
		return err
	}
	if err := d.requireVersion(); err != nil {
		return err
	}
	if _, err := d.requireHex("sid", 32); err != nil {
		return err
	}
	if _, err := d.requireHex("mailbox_id", 32); err != nil {
		return err
	}
	if _, err := d.requireEnum("direction", "AtoB", "BtoA"); err != nil {
		return err
	}
	if _, err := d.requireUint64("seq"); err != nil {
		return err
	}
	if _, err := d.requireHex("nonce", 24); err != nil {
		return err
	}
	if _, err := d.requireVariableHex("ciphertext"); err != nil {
		return err
	}
	return nil
}

// ValidateAny dispatches to the correct validator based on the "type"
// field, for call sites that don't yet know which anchor they hold.
func ValidateAny(raw interface{}) error {
	d, err := asDoc(raw)
	if err != nil {
		return err
	}
	t, ok := d["type"].(string)
	if !ok {
		return fieldError("type", "required field missing")
	}
	switch t {
	case "discovery":
		return ValidateDiscovery(raw)
	case "response":
		return ValidateResponse(raw)
	case "session_end":
		return ValidateSessionEnd(raw)
	case "msg":
		return ValidateMsg(raw)
	default:
		return fieldError("type", "unrecognized anchor type")
	}
}
