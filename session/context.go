// SPDX-License-Identifier: LGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kktp-network/kktp/canonical"
	"github.com/kktp-network/kktp/crypto/keys"
	"github.com/kktp-network/kktp/internal/logger"
	"github.com/kktp-network/kktp/internal/metrics"
	"github.com/kktp-network/kktp/message"
	"github.com/kktp-network/kktp/persistence"
	"github.com/kktp-network/kktp/wire"
)

// Context is one active or pending pairwise session. The vault
// exclusively owns Context values; the state machine only borrows them
// for transitions (spec §3 "Ownership").
type Context struct {
	mu sync.Mutex

	SID         string
	MailboxID   [32]byte
	sessionKey  [32]byte
	keyMaterial bool // true once sessionKey has been installed

	IsInitiator  bool
	MyDHPrivate  *keys.KeyPair
	MySigPrivate *keys.KeyPair
	PeerPubSig   []byte
	PeerPubDH    []byte

	OutboundSeq uint64
	InboundNext map[wire.Direction]uint64
	reorder     map[wire.Direction]*message.ReorderBuffer

	State State

	CreatedAt time.Time
	UpdatedAt time.Time

	KeyIndex uint32

	Discovery *wire.Discovery
	Response  *wire.Response

	MessageLog []LoggedMessage
}

// LoggedMessage is one entry in a session's ordered replay log, used by
// persistence and by the handover engine.
type LoggedMessage struct {
	Direction wire.Direction
	Seq       uint64
	Plaintext []byte
}

// localOutDirection returns the direction this party sends under:
// initiators send AtoB, responders send BtoA (spec §3 invariant).
func (c *Context) localOutDirection() wire.Direction {
	if c.IsInitiator {
		return wire.DirectionAtoB
	}
	return wire.DirectionBtoA
}

// NewContext builds a pending (IDLE) session context.
func NewContext(sid string, isInitiator bool, mySig, myDH *keys.KeyPair) *Context {
	return &Context{
		SID:          sid,
		IsInitiator:  isInitiator,
		MyDHPrivate:  myDH,
		MySigPrivate: mySig,
		InboundNext:  map[wire.Direction]uint64{wire.DirectionAtoB: 0, wire.DirectionBtoA: 0},
		reorder:      map[wire.Direction]*message.ReorderBuffer{},
		State:        StateIdle,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

// Transition moves the context to the next state, validating the edge.
func (c *Context) Transition(next State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	newState, err := advance(c.State, next)
	if err != nil {
		return err
	}
	c.State = newState
	c.UpdatedAt = time.Now()
	return nil
}

// InstallSessionKey installs the handshake result and transitions to
// ACTIVE. maxBufferSize configures the inbound reorder buffer (0 uses
// message.DefaultMaxBufferSize).
func (c *Context) InstallSessionKey(mailboxID [32]byte, sessionKey [32]byte, peerPubSig, peerPubDH []byte, maxBufferSize int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	newState, err := advance(c.State, StateActive)
	if err != nil {
		return err
	}
	c.MailboxID = mailboxID
	c.sessionKey = sessionKey
	c.keyMaterial = true
	c.PeerPubSig = peerPubSig
	c.PeerPubDH = peerPubDH
	c.State = newState
	c.UpdatedAt = time.Now()

	inDir := c.localOutDirection().Opposite()
	c.reorder[inDir] = message.NewReorderBuffer(maxBufferSize)

	role := "responder"
	if c.IsInitiator {
		role = "initiator"
	}
	metrics.SessionsCreated.WithLabelValues(role).Inc()
	metrics.SessionsActive.Inc()
	return nil
}

// Codec builds a message.Codec bound to this session's current key
// material. Returns nil if the session key has not been installed.
func (c *Context) Codec() *message.Codec {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.keyMaterial {
		return nil
	}
	return message.NewCodec(c.SID, c.MailboxID, c.sessionKey, c.localOutDirection())
}

// NextOutboundSeq returns the next sequence to pack with and advances
// the counter.
func (c *Context) NextOutboundSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq := c.OutboundSeq
	c.OutboundSeq++
	return seq
}

// AcceptInbound runs seq/plaintext through this session's reorder
// buffer for the local inbound direction. A replayed/stale sequence is
// a warn-level observable drop (spec §7); a buffer overflow is
// session-fatal and faults the session before returning.
func (c *Context) AcceptInbound(seq uint64, plaintext []byte) (message.Outcome, [][]byte, error) {
	c.mu.Lock()
	inDir := c.localOutDirection().Opposite()
	buf := c.reorder[inDir]
	sid := c.SID
	c.mu.Unlock()
	if buf == nil {
		return message.OutcomeDuplicate, nil, nil
	}

	outcome, delivered, err := buf.Accept(seq, plaintext)
	switch {
	case err != nil:
		logger.Warn("session: inbound buffer overflow, faulting",
			logger.String("sid", sid), logger.Uint64("seq", seq),
			logger.Error(logger.NewKKTPError(logger.ErrCodeBufferOverflow, "reorder buffer overflow", err)))
		c.Fault()
	case outcome == message.OutcomeDuplicate:
		logger.Warn("session: dropping replayed sequence",
			logger.String("sid", sid), logger.Uint64("seq", seq),
			logger.String("code", logger.ErrCodeSequenceReplay))
	case outcome == message.OutcomeDelivered:
		c.mu.Lock()
		c.InboundNext[inDir] = buf.Expected()
		for i, pt := range delivered {
			c.MessageLog = append(c.MessageLog, LoggedMessage{Direction: inDir, Seq: seq + uint64(i), Plaintext: pt})
		}
		c.mu.Unlock()
	}
	return outcome, delivered, err
}

// Receive decrypts one inbound wire.Msg frame with this session's codec
// and, on success, runs it through AcceptInbound. A *message.Dropped
// error (mailbox/SID mismatch) is a silent drop per spec §7 and takes
// no fault action; any other codec error (decryption failure, bad
// nonce length, direction reflection) is session-fatal, emits an
// observable event, and faults the session before returning.
func (c *Context) Receive(m *wire.Msg) (message.Outcome, [][]byte, error) {
	codec := c.Codec()
	if codec == nil {
		return message.OutcomeDuplicate, nil, fmt.Errorf("session: receive: no key material installed")
	}

	plaintext, err := codec.Unpack(m)
	if err != nil {
		var dropped *message.Dropped
		if errors.As(err, &dropped) {
			return message.OutcomeDuplicate, nil, err
		}

		code := logger.ErrCodeDecryptionFailed
		switch {
		case errors.Is(err, message.ErrNonceLengthInvalid):
			code = logger.ErrCodeNonceLengthInvalid
		case errors.Is(err, message.ErrReflection):
			code = logger.ErrCodeReflection
		}
		logger.ErrorMsg("session: inbound message rejected, faulting",
			logger.String("sid", c.SID),
			logger.Error(logger.NewKKTPError(code, "message codec rejected inbound frame", err)))
		c.Fault()
		return message.OutcomeDuplicate, nil, err
	}

	return c.AcceptInbound(m.Seq, plaintext)
}

// Fault transitions unconditionally to FAULTED and zeroizes the session
// key. Safe to call from any reachable state, including FAULTED itself.
func (c *Context) Fault() {
	c.mu.Lock()
	defer c.mu.Unlock()
	alreadyFaulted := c.State == StateFaulted
	wasActive := c.keyMaterial
	c.State = StateFaulted
	c.UpdatedAt = time.Now()
	c.zeroizeLocked()

	if alreadyFaulted {
		return
	}
	metrics.SessionsFaulted.WithLabelValues("protocol_violation").Inc()
	logger.Warn("session: faulted", logger.String("sid", c.SID))
	if wasActive {
		metrics.SessionsActive.Dec()
		metrics.SessionDuration.WithLabelValues("faulted").Observe(time.Since(c.CreatedAt).Seconds())
	}
}

// Close transitions to CLOSED (graceful termination) and zeroizes the
// session key.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasActive := c.keyMaterial
	newState, err := advance(c.State, StateClosed)
	if err != nil {
		return err
	}
	c.State = newState
	c.zeroizeLocked()

	metrics.SessionsClosed.WithLabelValues("local").Inc()
	if wasActive {
		metrics.SessionsActive.Dec()
		metrics.SessionDuration.WithLabelValues("closed").Observe(time.Since(c.CreatedAt).Seconds())
	}
	return nil
}

// ToRecord snapshots the context into a persistence.Record (spec
// §4.9's persistence layout). Safe to call at any point after
// InstallSessionKey; callers typically persist after every
// state-affecting operation.
func (c *Context) ToRecord() *persistence.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]persistence.LoggedEntry, len(c.MessageLog))
	for i, m := range c.MessageLog {
		messages[i] = persistence.LoggedEntry{
			Direction: m.Direction,
			Seq:       m.Seq,
			Plaintext: canonical.ToHex(m.Plaintext),
		}
	}

	return &persistence.Record{
		SID:           c.SID,
		MailboxID:     canonical.ToHex(c.MailboxID[:]),
		SessionKeyHex: canonical.ToHex(c.sessionKey[:]),
		OutboundSeq:   c.OutboundSeq,
		InboundAtoB:   c.InboundNext[wire.DirectionAtoB],
		InboundBtoA:   c.InboundNext[wire.DirectionBtoA],
		KeyIndex:      c.KeyIndex,
		RemotePubSig:  canonical.ToHex(c.PeerPubSig),
		IsInitiator:   c.IsInitiator,
		CreatedAt:     c.CreatedAt,
		Discovery:     c.Discovery,
		Response:      c.Response,
		Messages:      messages,
	}
}

// RestoreFromRecord builds a new ACTIVE Context from a persisted resume
// record: it installs the record's mailbox_id and K_session via
// InstallSessionKey, then restores the counters, a reorder buffer primed
// at the persisted inbound sequence, and the message log.
func RestoreFromRecord(rec *persistence.Record, mySig, myDH *keys.KeyPair) (*Context, error) {
	mailboxID, err := canonical.FromHexLen(rec.MailboxID, 32)
	if err != nil {
		return nil, err
	}
	sessionKey, err := canonical.FromHexLen(rec.SessionKeyHex, 32)
	if err != nil {
		return nil, err
	}
	peerPubSig, err := canonical.FromHex(rec.RemotePubSig)
	if err != nil {
		return nil, err
	}

	ctx := NewContext(rec.SID, rec.IsInitiator, mySig, myDH)
	ctx.CreatedAt = rec.CreatedAt
	ctx.Discovery = rec.Discovery
	ctx.Response = rec.Response
	ctx.KeyIndex = rec.KeyIndex

	if err := ctx.Transition(StateDiscovering); err != nil {
		return nil, err
	}
	if err := ctx.Transition(StateConnecting); err != nil {
		return nil, err
	}

	var mbox, key [32]byte
	copy(mbox[:], mailboxID)
	copy(key[:], sessionKey)
	if err := ctx.InstallSessionKey(mbox, key, peerPubSig, nil, 0); err != nil {
		return nil, err
	}

	ctx.mu.Lock()
	ctx.OutboundSeq = rec.OutboundSeq
	ctx.InboundNext[wire.DirectionAtoB] = rec.InboundAtoB
	ctx.InboundNext[wire.DirectionBtoA] = rec.InboundBtoA
	inDir := ctx.localOutDirection().Opposite()
	ctx.reorder[inDir] = message.NewReorderBufferAt(0, ctx.InboundNext[inDir])
	for _, m := range rec.Messages {
		plaintext, err := canonical.FromHex(m.Plaintext)
		if err != nil {
			ctx.mu.Unlock()
			return nil, err
		}
		ctx.MessageLog = append(ctx.MessageLog, LoggedMessage{Direction: m.Direction, Seq: m.Seq, Plaintext: plaintext})
	}
	ctx.mu.Unlock()

	return ctx, nil
}

func (c *Context) zeroizeLocked() {
	for i := range c.sessionKey {
		c.sessionKey[i] = 0
	}
	c.keyMaterial = false
}
