package negotiation

import (
	"context"
	"fmt"
	"strings"

	"github.com/haggle-network/haggle/internal/domain"
)

// Completer abstracts the text-generation backend behind the actors. The
// production implementation is the Gemini client; tests use scripted doubles.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// BuyerActor negotiates on behalf of the customer. Its only read-once fact
// is the buyer's balance.
type BuyerActor struct {
	llm Completer
}

// NewBuyerActor creates the buyer-side actor.
func NewBuyerActor(llm Completer) *BuyerActor {
	return &BuyerActor{llm: llm}
}

// Respond produces the buyer's next utterance given the full transcript.
func (a *BuyerActor) Respond(ctx context.Context, transcript []domain.Turn, facts domain.ActorFacts) (string, error) {
	prompt := fmt.Sprintf(
		"You want to buy %s from the seller %s. Your wallet balance is %.2f.\n\n%s\nYour reply:",
		facts.ProductID, facts.SellerID, facts.Balance, renderTranscript(transcript),
	)
	text, err := a.llm.Complete(ctx, buyerInstruction, prompt)
	if err != nil {
		return "", fmt.Errorf("buyer completion: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// SellerActor negotiates on behalf of the merchant. Its read-once fact is
// the inventory snapshot taken at session start.
type SellerActor struct {
	llm Completer
}

// NewSellerActor creates the seller-side actor.
func NewSellerActor(llm Completer) *SellerActor {
	return &SellerActor{llm: llm}
}

// Respond produces the seller's next utterance. On the opening turn the
// transcript is empty and the utterance answers the request built from the
// buyer/product/seller triple.
func (a *SellerActor) Respond(ctx context.Context, transcript []domain.Turn, facts domain.ActorFacts) (string, error) {
	prompt := fmt.Sprintf(
		"Customer %s wants to buy %s from you.\n\nYour inventory:\n%s\n%s\nYour reply:",
		facts.BuyerID, facts.ProductID, renderInventory(facts.Inventory), renderTranscript(transcript),
	)
	text, err := a.llm.Complete(ctx, sellerInstruction, prompt)
	if err != nil {
		return "", fmt.Errorf("seller completion: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// renderTranscript flattens the shared history for the prompt. Every turn is
// included; the transcript is the only state carried between turns.
func renderTranscript(transcript []domain.Turn) string {
	if len(transcript) == 0 {
		return "No conversation yet; this is the opening turn.\n"
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, t := range transcript {
		fmt.Fprintf(&b, "- %s: %s\n", t.Speaker, t.Text)
	}
	return b.String()
}

func renderInventory(items []domain.InventoryItem) string {
	if len(items) == 0 {
		return "(empty)\n"
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- %s (%s): %d in stock at %.2f each\n", it.ProductName, it.ProductID, it.Quantity, it.UnitPrice)
	}
	return b.String()
}
