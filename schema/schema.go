// SPDX-License-Identifier: LGPL-3.0-or-later

// Package schema validates the shape of every KKTP anchor and message
// before it is trusted by the handshake engine or message codec. No
// JSON-schema library (santhosh-tekuri/jsonschema, xeipuuv/gojsonschema,
// or similar) appears anywhere in the retrieval pack, and the protocol
// only ever needs to validate five fixed document shapes, so this
// package hand-writes the checks directly over the generic tree
// produced by the canonical package rather than building or importing a
// general schema engine.
package schema

import (
	"fmt"

	"github.com/kktp-network/kktp/canonical"
)

// ValidationError reports the field and reason a document failed
// validation. Errors are returned, never panicked, so that adversarial
// peer input can never crash the core (spec §7).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema: field %q: %s", e.Field, e.Reason)
}

func fieldError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// doc is the generic object view validators operate over.
type doc map[string]interface{}

// asDoc asserts v decodes to a JSON object and returns its fields.
func asDoc(v interface{}) (doc, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fieldError("$", "expected a JSON object")
	}
	return doc(m), nil
}

func (d doc) requireString(field string) (string, error) {
	v, ok := d[field]
	if !ok {
		return "", fieldError(field, "required field missing")
	}
	s, ok := v.(string)
	if !ok {
		return "", fieldError(field, "expected a string")
	}
	return s, nil
}

func (d doc) requireHex(field string, byteLen int) (string, error) {
	s, err := d.requireString(field)
	if err != nil {
		return "", err
	}
	if !canonical.IsLowerHex(s, byteLen) {
		return "", fieldError(field, fmt.Sprintf("expected %d bytes of lowercase hex", byteLen))
	}
	return s, nil
}

func (d doc) requireVariableHex(field string) (string, error) {
	s, err := d.requireString(field)
	if err != nil {
		return "", err
	}
	if !canonical.IsLowerHex(s, len(s)/2) || len(s)%2 != 0 {
		return "", fieldError(field, "expected lowercase hex of even length")
	}
	return s, nil
}

func (d doc) requireEnum(field string, allowed ...string) (string, error) {
	s, err := d.requireString(field)
	if err != nil {
		return "", err
	}
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", fieldError(field, fmt.Sprintf("expected one of %v", allowed))
}

func (d doc) requireNumber(field string) (float64, error) {
	v, ok := d[field]
	if !ok {
		return 0, fieldError(field, "required field missing")
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fieldError(field, "expected a number")
	}
	return f, nil
}

func (d doc) requireUint64(field string) (uint64, error) {
	f, err := d.requireNumber(field)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fieldError(field, "expected a non-negative integer")
	}
	return uint64(f), nil
}

// requireVRFPair enforces the both-or-neither rule on vrf_value/vrf_proof
// and, when present, their fixed hex lengths (32-byte output, 81-byte
// proof per crypto/vrf).
func (d doc) requireVRFPair() (value, proof string, present bool, err error) {
	vRaw, vOK := d["vrf_value"]
	pRaw, pOK := d["vrf_proof"]
	if !vOK || !pOK {
		return "", "", false, fieldError("vrf_value/vrf_proof", "both fields must be present (null or set)")
	}
	vNull := vRaw == nil
	pNull := pRaw == nil
	if vNull != pNull {
		return "", "", false, fieldError("vrf_value/vrf_proof", "must be both null or both set")
	}
	if vNull {
		return "", "", false, nil
	}
	value, err = d.requireHex("vrf_value", 32)
	if err != nil {
		return "", "", false, err
	}
	proof, err = d.requireHex("vrf_proof", 81)
	if err != nil {
		return "", "", false, err
	}
	return value, proof, true, nil
}

// checkUnknownKeys enforces the strict "no unknown properties" rule,
// with the documented exception that discovery anchors may carry a
// top-level "meta" object.
func checkUnknownKeys(d doc, allowed map[string]bool, allowMeta bool) error {
	for k := range d {
		if allowed[k] {
			continue
		}
		if allowMeta && k == "meta" {
			continue
		}
		return fieldError(k, "unknown property")
	}
	return nil
}

const protocolVersion = float64(1)

func (d doc) requireVersion() error {
	v, err := d.requireNumber("version")
	if err != nil {
		return err
	}
	if v != protocolVersion {
		return fieldError("version", "unsupported protocol version")
	}
	return nil
}

func (d doc) requireType(want string) error {
	_, err := d.requireEnum("type", want)
	return err
}
