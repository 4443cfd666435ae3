// SPDX-License-Identifier: LGPL-3.0-or-later

package keys

import "errors"

// ErrInvalidSignature is returned by Verify when the signature does not
// check against the supplied public key and message.
var ErrInvalidSignature = errors.New("keys: invalid signature")
