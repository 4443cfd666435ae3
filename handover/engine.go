// SPDX-License-Identifier: LGPL-3.0-or-later

package handover

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kktp-network/kktp/canonical"
	"github.com/kktp-network/kktp/crypto/keys"
	"github.com/kktp-network/kktp/handshake"
	"github.com/kktp-network/kktp/internal/logger"
	"github.com/kktp-network/kktp/internal/metrics"
	"github.com/kktp-network/kktp/message"
	"github.com/kktp-network/kktp/persistence"
	"github.com/kktp-network/kktp/session"
	"github.com/kktp-network/kktp/transport"
	"github.com/kktp-network/kktp/wire"
)

// DefaultMaxSeconds is the scan budget when the caller doesn't
// override it (spec §4.9: "max_seconds (scan budget, default 30s)").
const DefaultMaxSeconds = 30.0

// Result is what one Run call produces.
type Result struct {
	Outcome Outcome
	Session *session.Context
	State   State
}

// Engine runs the sovereign resume procedure against a carrier-DAG
// Network, a session Vault, and a persistence Manager. It coordinates
// scans against a time budget in one linear pass with no nested
// continuations, and reports the State it ended in on Result.
type Engine struct {
	Net       transport.Network
	Vault     *session.Vault
	Persist   *persistence.Manager
	Factory   *wire.Factory
	Handshake *handshake.Engine

	MySig *keys.KeyPair // identity signing key, stable across handover
}

// NewEngine builds a handover Engine from its collaborators.
func NewEngine(net transport.Network, vault *session.Vault, persist *persistence.Manager, factory *wire.Factory, hs *handshake.Engine, mySig *keys.KeyPair) *Engine {
	return &Engine{Net: net, Vault: vault, Persist: persist, Factory: factory, Handshake: hs, MySig: mySig}
}

// Run executes the full sovereign resume procedure for sid (or the
// latest persisted record if sid is empty), respecting maxSeconds
// (0 uses DefaultMaxSeconds) and a cooperative stop channel.
func (e *Engine) Run(ctx context.Context, sid string, maxSeconds float64, stop <-chan struct{}) (*Result, error) {
	start := time.Now()
	result, err := e.run(ctx, sid, maxSeconds, stop)
	elapsed := time.Since(start)
	if err != nil {
		logger.ErrorMsg("handover: run failed",
			logger.String("sid", sid),
			logger.Error(logger.NewKKTPError(logger.ErrCodeInternal, "handover run failed", err)))
		return result, err
	}

	metrics.HandoverRuns.WithLabelValues(string(result.Outcome)).Inc()
	metrics.HandoverDuration.WithLabelValues(string(result.Outcome)).Observe(elapsed.Seconds())

	// HandoverTimeout/HandoverNoLock are recoverable status tags, not
	// Go errors (spec §7): report them as a warn-level observable event
	// so an operator can see a resume attempt stalled.
	switch result.Outcome {
	case OutcomeHandoverPending:
		logger.Warn("handover: pending, no peer-initiated marker seen",
			logger.String("sid", sid),
			logger.String("code", logger.ErrCodeHandoverTimeout))
	case OutcomeHandoverNoLock:
		logger.Warn("handover: successor established but lock not observed",
			logger.String("sid", sid),
			logger.String("code", logger.ErrCodeHandoverNoLock))
	}
	return result, err
}

func (e *Engine) run(ctx context.Context, sid string, maxSeconds float64, stop <-chan struct{}) (*Result, error) {
	if maxSeconds <= 0 {
		maxSeconds = DefaultMaxSeconds
	}
	deadline := time.Now().Add(time.Duration(maxSeconds * float64(time.Second)))

	old, err := e.loadPredecessor(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("handover: load predecessor: %w", err)
	}
	oldMailboxHex := canonical.ToHex(old.MailboxID[:])

	// Scanning phases share one overall deadline but must not let an
	// empty early phase starve the ones after it: scan_peer finding
	// nothing is the common case, and it must still leave time for
	// propose/scan_response/scan_lock. Split what's left evenly across
	// the phases still ahead rather than handing scan_peer the whole
	// budget.
	phasesLeft := 3.0
	marker, err := e.scanForPeerMarker(ctx, old, oldMailboxHex, remaining(deadline)/phasesLeft, stop)
	if err != nil {
		return nil, fmt.Errorf("handover: scan peer: %w", err)
	}
	if marker != nil {
		return e.pivotToPeer(ctx, old, oldMailboxHex, marker)
	}

	disc, newDH, newSIDHex, err := e.proposeHandover(ctx)
	if err != nil {
		return nil, fmt.Errorf("handover: propose: %w", err)
	}

	phasesLeft--
	resp, err := e.scanForResponse(ctx, newSIDHex, remaining(deadline)/phasesLeft, stop)
	if err != nil {
		return nil, fmt.Errorf("handover: scan response: %w", err)
	}
	if resp == nil {
		if err := e.publishHandoverIntent(ctx, old, oldMailboxHex, newSIDHex, disc); err != nil {
			return nil, fmt.Errorf("handover: publish intent: %w", err)
		}
		return &Result{Outcome: OutcomeHandoverPending, Session: old, State: StateScanResponse}, nil
	}

	succ, err := e.establishSuccessor(disc, resp, newDH, true)
	if err != nil {
		return nil, fmt.Errorf("handover: establish successor: %w", err)
	}
	succMailboxHex := canonical.ToHex(succ.MailboxID[:])
	if err := e.Persist.Save(ctx, succ.ToRecord()); err != nil {
		return nil, fmt.Errorf("handover: persist successor: %w", err)
	}

	locked, err := e.scanForLock(ctx, succ, succMailboxHex, remaining(deadline), stop)
	if err != nil {
		return nil, fmt.Errorf("handover: scan lock: %w", err)
	}
	if !locked {
		return &Result{Outcome: OutcomeHandoverNoLock, Session: succ, State: StateScanLock}, nil
	}

	old.Fault()
	e.Vault.Remove(oldMailboxHex, old.SID)
	_ = e.Persist.Delete(ctx, old.SID)
	if err := e.Persist.Save(ctx, succ.ToRecord()); err != nil {
		return nil, fmt.Errorf("handover: persist successor: %w", err)
	}
	return &Result{Outcome: OutcomeHandoverComplete, Session: succ, State: StateDone}, nil
}

func (e *Engine) loadPredecessor(ctx context.Context, sid string) (*session.Context, error) {
	var rec *persistence.Record
	var err error
	if sid != "" {
		rec, err = e.Persist.Load(ctx, sid)
	} else {
		rec, err = e.Persist.LoadLatest(ctx)
	}
	if err != nil {
		return nil, err
	}

	old, err := session.RestoreFromRecord(rec, e.MySig, nil)
	if err != nil {
		return nil, err
	}
	e.Vault.Activate(old, canonical.ToHex(old.MailboxID[:]))
	return old, nil
}

// scanForPeerMarker implements step 2: scan for authenticated messages
// on the predecessor's mailbox carrying a handover intent from the
// peer.
func (e *Engine) scanForPeerMarker(ctx context.Context, old *session.Context, oldMailboxHex string, budget float64, stop <-chan struct{}) (*handoverIntent, error) {
	var found *handoverIntent
	codec := old.Codec()
	if codec == nil {
		return nil, fmt.Errorf("handover: predecessor has no session key")
	}

	err := e.Net.Scan(ctx, transport.ScanOptions{
		Prefixes:   []string{wire.MailboxPrefix(oldMailboxHex)},
		MaxSeconds: budget,
		Stop:       stop,
		OnMatch: func(p transport.Payload) bool {
			_, body, err := wire.DecodePayload(p.Data)
			if err != nil {
				return false
			}
			m, err := decodeMsg(body)
			if err != nil {
				return false
			}
			plaintext, err := codec.Unpack(m)
			if err != nil {
				return false
			}
			marker, ok := tryDecodeHandoverIntent(plaintext)
			if !ok {
				return false
			}
			found = marker
			return true
		},
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// pivotToPeer implements step 2's "consume the embedded discovery
// anchor by connecting to it" branch.
func (e *Engine) pivotToPeer(ctx context.Context, old *session.Context, oldMailboxHex string, marker *handoverIntent) (*Result, error) {
	newDH, err := keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("handover: new dh key: %w", err)
	}
	resp, err := e.Factory.NewResponse(marker.NewAnchor, e.MySig.PublicCompressed(), newDH.PublicCompressed())
	if err != nil {
		return nil, fmt.Errorf("handover: build response: %w", err)
	}
	resp.SigResp, err = wire.SignAnchor(e.MySig, resp, []string{"sig_resp"}, false)
	if err != nil {
		return nil, fmt.Errorf("handover: sign response: %w", err)
	}

	succ, err := e.establishSuccessor(marker.NewAnchor, resp, newDH, false)
	if err != nil {
		return nil, fmt.Errorf("handover: establish successor: %w", err)
	}

	respJSON, err := canonical.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("handover: marshal response: %w", err)
	}
	if _, err := e.Net.Publish(ctx, wire.EncodeAnchorPayload(respJSON)); err != nil {
		return nil, fmt.Errorf("handover: publish response: %w", err)
	}

	if err := e.Persist.Save(ctx, succ.ToRecord()); err != nil {
		return nil, fmt.Errorf("handover: persist successor: %w", err)
	}

	old.Fault()
	e.Vault.Remove(oldMailboxHex, old.SID)
	_ = e.Persist.Delete(ctx, old.SID)

	return &Result{Outcome: OutcomePivoted, Session: succ, State: StateDone}, nil
}

// proposeHandover implements step 3's "construct a fresh discovery
// anchor" branch.
func (e *Engine) proposeHandover(ctx context.Context) (*wire.Discovery, *keys.KeyPair, string, error) {
	newDH, err := keys.Generate()
	if err != nil {
		return nil, nil, "", fmt.Errorf("handover: new dh key: %w", err)
	}
	seed := append([]byte{}, e.MySig.PublicCompressed()...)
	seed = append(seed, newDH.PublicCompressed()...)
	sid, err := e.Factory.NewSID(seed)
	if err != nil {
		return nil, nil, "", fmt.Errorf("handover: new sid: %w", err)
	}

	disc := e.Factory.NewDiscovery(sid, e.MySig.PublicCompressed(), newDH.PublicCompressed())
	disc.Sig, err = wire.SignAnchor(e.MySig, disc, []string{"sig"}, true)
	if err != nil {
		return nil, nil, "", fmt.Errorf("handover: sign discovery: %w", err)
	}

	discJSON, err := canonical.Marshal(disc)
	if err != nil {
		return nil, nil, "", fmt.Errorf("handover: marshal discovery: %w", err)
	}
	if _, err := e.Net.Publish(ctx, wire.EncodeAnchorPayload(discJSON)); err != nil {
		return nil, nil, "", fmt.Errorf("handover: publish discovery: %w", err)
	}

	return disc, newDH, disc.SID, nil
}

func (e *Engine) scanForResponse(ctx context.Context, sidHex string, budget float64, stop <-chan struct{}) (*wire.Response, error) {
	var found *wire.Response
	err := e.Net.Scan(ctx, transport.ScanOptions{
		Prefixes:   []string{wire.PrefixAnchor},
		MaxSeconds: budget,
		Stop:       stop,
		OnMatch: func(p transport.Payload) bool {
			_, body, err := wire.DecodePayload(p.Data)
			if err != nil {
				return false
			}
			r, err := decodeResponse(body)
			if err != nil {
				return false
			}
			if r.SID != sidHex {
				return false
			}
			found = r
			return true
		},
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (e *Engine) publishHandoverIntent(ctx context.Context, old *session.Context, oldMailboxHex, newSIDHex string, disc *wire.Discovery) error {
	intent := handoverIntent{Intent: "handover", NewSID: newSIDHex, NewAnchor: disc}
	intentJSON, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}
	codec := old.Codec()
	if codec == nil {
		return fmt.Errorf("predecessor has no session key")
	}
	msgJSON, err := codec.Pack(intentJSON, old.NextOutboundSeq())
	if err != nil {
		return fmt.Errorf("pack intent: %w", err)
	}
	if _, err := e.Net.Publish(ctx, wire.EncodeMessagePayload(oldMailboxHex, msgJSON)); err != nil {
		return fmt.Errorf("publish intent: %w", err)
	}
	return e.Persist.Save(ctx, old.ToRecord())
}

func (e *Engine) establishSuccessor(disc *wire.Discovery, resp *wire.Response, myDH *keys.KeyPair, isInitiator bool) (*session.Context, error) {
	result, err := e.Handshake.Run(disc, resp, myDH, isInitiator)
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}

	peerPubSigHex := resp.PubSigResp
	peerPubDHHex := resp.PubDHResp
	if !isInitiator {
		peerPubSigHex = disc.PubSig
		peerPubDHHex = disc.PubDH
	}
	peerPubSig, err := canonical.FromHexLen(peerPubSigHex, 33)
	if err != nil {
		return nil, err
	}
	peerPubDH, err := canonical.FromHexLen(peerPubDHHex, 33)
	if err != nil {
		return nil, err
	}

	succ := session.NewContext(disc.SID, isInitiator, e.MySig, myDH)
	succ.Discovery = disc
	succ.Response = resp
	if err := succ.Transition(session.StateDiscovering); err != nil {
		return nil, err
	}
	if err := succ.Transition(session.StateConnecting); err != nil {
		return nil, err
	}
	if err := succ.InstallSessionKey(result.MailboxID, result.SessionKey, peerPubSig, peerPubDH, message.DefaultMaxBufferSize); err != nil {
		return nil, err
	}

	mailboxHex := canonical.ToHex(result.MailboxID[:])
	e.Vault.Activate(succ, mailboxHex)
	return succ, nil
}

func (e *Engine) scanForLock(ctx context.Context, succ *session.Context, mailboxHex string, budget float64, stop <-chan struct{}) (bool, error) {
	locked := false
	codec := succ.Codec()
	if codec == nil {
		return false, fmt.Errorf("successor has no session key")
	}

	err := e.Net.Scan(ctx, transport.ScanOptions{
		Prefixes:   []string{wire.MailboxPrefix(mailboxHex)},
		MaxSeconds: budget,
		Stop:       stop,
		OnMatch: func(p transport.Payload) bool {
			_, body, err := wire.DecodePayload(p.Data)
			if err != nil {
				return false
			}
			m, err := decodeMsg(body)
			if err != nil {
				return false
			}
			plaintext, err := codec.Unpack(m)
			if err != nil {
				return false
			}
			outcome, _, err := succ.AcceptInbound(m.Seq, plaintext)
			if err != nil {
				return false
			}
			if outcome == message.OutcomeDelivered {
				locked = true
				return true
			}
			return false
		},
	})
	if err != nil {
		return false, err
	}
	return locked, nil
}

func remaining(deadline time.Time) float64 {
	d := time.Until(deadline).Seconds()
	if d < 0 {
		return 0
	}
	return d
}
