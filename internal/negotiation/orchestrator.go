// Package negotiation drives the bounded, alternating dialogue between a
// buyer actor and a seller actor until one side signals agreement or
// breakdown.
//
// The protocol itself imposes no turn cap. Termination is actor-driven:
// any actor may emit the breakdown token as its whole utterance, or the
// equilibrium utterance "deal: <price>". An empty or malformed utterance
// fails closed as Broken; the protocol never loops waiting for a valid turn.
package negotiation

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/haggle-network/haggle/internal/domain"
	"github.com/haggle-network/haggle/internal/infra/observability"
)

// Orchestrator runs negotiation sessions. It holds no shared mutable state;
// independent sessions may run concurrently.
type Orchestrator struct {
	buyer  domain.DialogueActor
	seller domain.DialogueActor
	store  domain.TradeStore
}

// New creates an orchestrator over the two actors and the store handle used
// for the read-once role facts.
func New(buyer, seller domain.DialogueActor, store domain.TradeStore) *Orchestrator {
	return &Orchestrator{buyer: buyer, seller: seller, store: store}
}

// Negotiate runs one session to a terminal state and returns it with the
// full transcript. The seller moves first, quoting terms against the opening
// request carried in the actor facts; turns then alternate strictly.
//
// A non-nil error means an infrastructure failure (store read, actor
// invocation), distinct from a Broken outcome, which is a valid result.
func (o *Orchestrator) Negotiate(ctx context.Context, buyerID, sellerID, productID string) (*domain.NegotiationSession, error) {
	session := &domain.NegotiationSession{
		ID:        newSessionID(),
		BuyerID:   buyerID,
		SellerID:  sellerID,
		ProductID: productID,
		State:     domain.SessionActive,
		StartedAt: time.Now(),
	}

	facts, err := o.gatherFacts(ctx, buyerID, sellerID, productID)
	if err != nil {
		return nil, err
	}

	log.Printf("[negotiation] session %s: %s buying %s from %s", session.ID, buyerID, productID, sellerID)

	// Seller opens; thereafter strict alternation.
	actor, speaker := o.seller, domain.SpeakerSeller
	for session.State == domain.SessionActive {
		text, err := actor.Respond(ctx, session.History, facts)
		if err != nil {
			return nil, fmt.Errorf("%s actor: %w", speaker, err)
		}

		utterance, terminal := classify(text)
		session.Append(speaker, utterance)

		switch terminal {
		case outcomeBreak:
			session.State = domain.SessionBroken
		case outcomeAccept:
			price, _ := domain.ParseAccept(utterance)
			session.State = domain.SessionAgreed
			session.AgreedPrice = price
		}

		if speaker == domain.SpeakerSeller {
			actor, speaker = o.buyer, domain.SpeakerBuyer
		} else {
			actor, speaker = o.seller, domain.SpeakerSeller
		}
	}

	observability.NegotiationsTotal.WithLabelValues(string(session.State)).Inc()
	observability.NegotiationTurns.Observe(float64(session.TurnIndex))
	log.Printf("[negotiation] session %s ended %s after %d turns", session.ID, session.State, session.TurnIndex)
	return session, nil
}

// gatherFacts reads each side's role facts once, at session start. The
// transcript is the only state carried between turns afterwards.
func (o *Orchestrator) gatherFacts(ctx context.Context, buyerID, sellerID, productID string) (domain.ActorFacts, error) {
	facts := domain.ActorFacts{BuyerID: buyerID, SellerID: sellerID, ProductID: productID}

	buyer, err := o.store.GetAccount(ctx, buyerID)
	if err != nil {
		return facts, fmt.Errorf("reading buyer facts: %w", err)
	}
	facts.Balance = buyer.Balance

	if _, err := o.store.GetAccount(ctx, sellerID); err != nil {
		return facts, fmt.Errorf("reading seller facts: %w", err)
	}
	inventory, err := o.store.InventoryByOwner(ctx, sellerID)
	if err != nil {
		return facts, fmt.Errorf("reading seller inventory: %w", err)
	}
	facts.Inventory = inventory
	return facts, nil
}

type terminalKind int

const (
	outcomeNone terminalKind = iota
	outcomeBreak
	outcomeAccept
)

// classify inspects an utterance for a terminal token. Empty or malformed
// output is coerced into the breakdown token: fail closed, no retry of an
// individual turn.
func classify(text string) (string, terminalKind) {
	if domain.IsBreak(text) {
		return domain.BreakToken, outcomeBreak
	}
	if _, ok := domain.ParseAccept(text); ok {
		return text, outcomeAccept
	}
	if len(text) == 0 || len(text) > maxUtteranceBytes {
		return domain.BreakToken, outcomeBreak
	}
	return text, outcomeNone
}

// maxUtteranceBytes guards against a runaway actor flooding the transcript.
const maxUtteranceBytes = 8 << 10

func newSessionID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Now(), entropy).String()
}
