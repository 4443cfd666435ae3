// SPDX-License-Identifier: LGPL-3.0-or-later

// Package persistence stores encrypted per-session resume records so a
// sovereign peer can recover a session after a crash or restart (spec
// §4.8, layout in §4.9 "Persistence layout").
package persistence

import (
	"time"

	"github.com/kktp-network/kktp/wire"
)

// DefaultKeyPrefix is prepended to a session ID to form a storage key.
const DefaultKeyPrefix = "kktp_resume_"

// Record is the plaintext shape of a resume record before encryption.
// Field names mirror spec §4.9's persistence layout verbatim.
type Record struct {
	SID           string          `json:"sid"`
	MailboxID     string          `json:"mailbox_id"`
	SessionKeyHex string          `json:"K_session"`
	OutboundSeq   uint64          `json:"outboundSeq"`
	InboundAtoB   uint64          `json:"inboundSeq_AtoB"`
	InboundBtoA   uint64          `json:"inboundSeq_BtoA"`
	KeyIndex      uint32          `json:"keyIndex"`
	RemotePubSig  string          `json:"remote_pub_sig"`
	IsInitiator   bool            `json:"isInitiator"`
	CreatedAt     time.Time       `json:"createdAt"`
	Discovery     *wire.Discovery `json:"discovery,omitempty"`
	Response      *wire.Response  `json:"response,omitempty"`
	Messages      []LoggedEntry   `json:"messages,omitempty"`
}

// LoggedEntry is one replay-log entry, hex-encoded for JSON transport.
type LoggedEntry struct {
	Direction wire.Direction `json:"direction"`
	Seq       uint64         `json:"seq"`
	Plaintext string         `json:"plaintext"`
}

// Key returns the storage key for a session ID under the given prefix.
// An empty prefix falls back to DefaultKeyPrefix.
func Key(prefix, sid string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + sid
}
