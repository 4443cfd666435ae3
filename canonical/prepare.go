// SPDX-License-Identifier: LGPL-3.0-or-later

package canonical

import "fmt"

// PrepareForSigning drops the configured top-level keys (the
// signature field itself) and, if excludeMeta is true, also drops the
// top-level "meta" key, before canonicalization. Per §4.1 this is a
// top-level transform only: nested documents are left untouched.
func PrepareForSigning(v map[string]interface{}, omit []string, excludeMeta bool) map[string]interface{} {
	out := make(map[string]interface{}, len(v))
	dropped := make(map[string]bool, len(omit)+1)
	for _, k := range omit {
		dropped[k] = true
	}
	if excludeMeta {
		dropped["meta"] = true
	}
	for k, val := range v {
		if dropped[k] {
			continue
		}
		out[k] = val
	}
	return out
}

// SigningPreimage canonicalizes the anchor after PrepareForSigning has
// been applied, returning the exact bytes a signature is computed over.
func SigningPreimage(v map[string]interface{}, omit []string, excludeMeta bool) ([]byte, error) {
	prepared := PrepareForSigning(v, omit, excludeMeta)
	b, err := Marshal(prepared)
	if err != nil {
		return nil, fmt.Errorf("canonical: signing preimage: %w", err)
	}
	return b, nil
}

// ToMap converts a JSON-taggable Go struct into the map representation
// PrepareForSigning/SigningPreimage operate on.
func ToMap(v interface{}) (map[string]interface{}, error) {
	tree, err := decodeViaMarshal(v)
	if err != nil {
		return nil, err
	}
	m, ok := tree.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("canonical: value is not a JSON object")
	}
	return m, nil
}

func decodeViaMarshal(v interface{}) (interface{}, error) {
	b, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}
