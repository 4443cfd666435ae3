// SPDX-License-Identifier: LGPL-3.0-or-later

// Package wsrelay implements transport.Network over a gorilla/websocket
// relay: a single server fans every published payload out to every
// connected client in real time, as a low-latency alternative to the
// carrier DAG for lobby DM traffic. Grounded on the teacher's
// pkg/agent/transport/websocket client/server pair (persistent
// connection, JSON wire frames, read/write deadlines), generalized from
// a one-shot request/response exchange to a broadcast relay, since a
// lobby member publishing a join request has no single recipient
// connection to address — every connected peer (including the host)
// must see it.
package wsrelay

import "time"

// frame is the wire shape exchanged over the relay connection.
type frame struct {
	Hash        string    `json:"hash"`
	Data        string    `json:"data"`
	PublishedAt time.Time `json:"publishedAt"`
}
