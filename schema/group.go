// SPDX-License-Identifier: LGPL-3.0-or-later

package schema

var groupMessageAllowedFields = map[string]bool{
	"type": true, "version": true, "group_mailbox_id": true,
	"senderPubSig": true, "keyVersion": true,
	"nonce": true, "ciphertext": true, "timestamp": true,
}

// ValidateGroupMessage checks raw against the lobby group_message wire
// shape carried under the "KKTP:GROUP:" prefix.
func ValidateGroupMessage(raw interface{}) error {
	d, err := asDoc(raw)
	if err != nil {
		return err
	}
	if err := checkUnknownKeys(d, groupMessageAllowedFields, false); err != nil {
		return err
	}
	if err := d.requireType("group_message"); err != nil {
		return err
	}
	if err := d.requireVersion(); err != nil {
		return err
	}
	if _, err := d.requireHex("group_mailbox_id", 32); err != nil {
		return err
	}
	if _, err := d.requireHex("senderPubSig", 33); err != nil {
		return err
	}
	if _, err := d.requireUint64("keyVersion"); err != nil {
		return err
	}
	if _, err := d.requireHex("nonce", 24); err != nil {
		return err
	}
	if _, err := d.requireVariableHex("ciphertext"); err != nil {
		return err
	}
	if _, err := d.requireNumber("timestamp"); err != nil {
		return err
	}
	return nil
}
