// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture. It depends on nothing.
package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ─── Account Types ──────────────────────────────────────────────────────────

// Account is a trading party's wallet record. The settlement engine is the
// only mutator; accounts are created and destroyed by an external account
// service.
type Account struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Balance          float64 `json:"balance"`
	NegotiationLimit float64 `json:"negotiation_limit"` // concession fraction in [0,1]
	Version          int64   `json:"-"`                 // optimistic-concurrency stamp
}

// ─── Inventory Types ────────────────────────────────────────────────────────

// InventoryItem is stock held by one owner. Quantity never goes negative;
// a transfer is a decrement at the seller and an increment (or creation)
// under the buyer's (owner_id, product_id) key.
type InventoryItem struct {
	ProductID   string  `json:"product_id"`
	OwnerID     string  `json:"owner_id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
	Version     int64   `json:"-"`
}

// CartLine is one requested line of a trade. Input-only, never persisted.
type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// ─── Negotiation Types ──────────────────────────────────────────────────────

// Speaker identifies which side of the table produced an utterance.
type Speaker string

const (
	SpeakerBuyer  Speaker = "buyer"
	SpeakerSeller Speaker = "seller"
)

// Turn is a single utterance in a negotiation transcript.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// SessionState is the lifecycle state of a negotiation session.
type SessionState string

const (
	SessionActive SessionState = "ACTIVE"
	SessionAgreed SessionState = "AGREED"
	SessionBroken SessionState = "BROKEN"
)

// BreakToken is the designated breakdown utterance: an actor emitting exactly
// this as its whole turn ends the session as Broken.
const BreakToken = "break"

// acceptPrefix marks the equilibrium utterance: "deal: <price>" as the whole
// turn ends the session as Agreed with the quoted price.
const acceptPrefix = "deal:"

// NegotiationSession is the full record of one bounded dialogue.
type NegotiationSession struct {
	ID          string       `json:"id"`
	BuyerID     string       `json:"buyer_id"`
	SellerID    string       `json:"seller_id"`
	ProductID   string       `json:"product_id"`
	History     []Turn       `json:"history"` // append-only
	TurnIndex   int          `json:"turn_index"`
	State       SessionState `json:"state"`
	AgreedPrice float64      `json:"agreed_price,omitempty"` // set when State == AGREED
	StartedAt   time.Time    `json:"started_at"`
}

// Append records an utterance and advances the turn index.
func (s *NegotiationSession) Append(speaker Speaker, text string) {
	s.History = append(s.History, Turn{Speaker: speaker, Text: text})
	s.TurnIndex++
}

// ConversationLog flattens the transcript into "speaker: text" lines for
// caller-facing responses.
func (s *NegotiationSession) ConversationLog() []string {
	log := make([]string, 0, len(s.History))
	for _, t := range s.History {
		log = append(log, fmt.Sprintf("%s: %s", t.Speaker, t.Text))
	}
	return log
}

// ParseAccept reports whether an utterance is the equilibrium utterance and
// returns the accepted price. The recognized form is "deal: <number>" as the
// entire (trimmed, case-insensitive) turn.
func ParseAccept(text string) (float64, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(strings.ToLower(trimmed), acceptPrefix) {
		return 0, false
	}
	raw := strings.TrimSpace(trimmed[len(acceptPrefix):])
	raw = strings.TrimPrefix(raw, "$")
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || price < 0 {
		return 0, false
	}
	return price, true
}

// IsBreak reports whether an utterance is the breakdown token.
func IsBreak(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), BreakToken)
}

// ─── Receipt Types ──────────────────────────────────────────────────────────

// ReceiptItem is a line-item snapshot taken at commit time.
type ReceiptItem struct {
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// Receipt is the sole durable record of a completed trade. Immutable once
// created.
type Receipt struct {
	TransactionID      string        `json:"transactionId"`
	BuyerName          string        `json:"buyerName"`
	MerchantName       string        `json:"merchantName"`
	Items              []ReceiptItem `json:"items"`
	OriginalTotal      float64       `json:"originalTotal"`
	NegotiatedDiscount float64       `json:"negotiatedDiscount"`
	FinalTotal         float64       `json:"finalTotal"`
	Timestamp          time.Time     `json:"timestamp"`
}

// MidpointDiscount is the authoritative pricing policy applied at commit
// time regardless of what the dialogue actors agreed on: the discount
// fraction is the midpoint of the two parties' negotiation limits. Both
// amounts are rounded to cents.
func MidpointDiscount(originalTotal, buyerLimit, sellerLimit float64) (discount, finalTotal float64) {
	fraction := (buyerLimit + sellerLimit) / 2
	discount = roundCents(originalTotal * fraction)
	return discount, roundCents(originalTotal - discount)
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
