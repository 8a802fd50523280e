package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/haggle-network/haggle/internal/domain"
)

// ─── Trade API ──────────────────────────────────────────────────────────────
//
// POST /api/trade/execute: negotiate, then settle the cart atomically.

// TradeRequest is the caller-facing settlement request.
type TradeRequest struct {
	BuyerID    string            `json:"buyerId"`
	MerchantID string            `json:"merchantId"`
	Cart       []domain.CartLine `json:"cart"`
}

// TradeResponse carries the outcome plus the flattened, human-readable
// transcript. The conversation log is purely informational.
type TradeResponse struct {
	Status          string          `json:"status"`
	Message         string          `json:"message"`
	ConversationLog []string        `json:"conversationLog"`
	Receipt         *domain.Receipt `json:"receipt,omitempty"`
}

// HandleExecuteTrade runs the full negotiate-then-settle pipeline.
func (s *Server) handleExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.BuyerID == "" || req.MerchantID == "" || len(req.Cart) == 0 {
		writeError(w, http.StatusBadRequest, "missing buyer, merchant, or cart data")
		return
	}

	result, err := s.trader.Execute(r.Context(), req.BuyerID, req.MerchantID, req.Cart)

	var conversationLog []string
	if result != nil && result.Session != nil {
		conversationLog = result.Session.ConversationLog()
	}

	if err != nil {
		// Breakdown is a valid terminal outcome, not an error condition:
		// the caller branches on status instead of an error payload.
		if errors.Is(err, domain.ErrNegotiationBreakdown) {
			writeJSON(w, http.StatusOK, TradeResponse{
				Status:          "broken",
				Message:         "negotiation ended without agreement",
				ConversationLog: conversationLog,
			})
			return
		}
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TradeResponse{
		Status:          "success",
		Message:         "Transaction completed successfully!",
		ConversationLog: conversationLog,
		Receipt:         result.Receipt,
	})
}

// statusForError maps the typed settlement failures onto HTTP codes.
// Anything unmapped is an infrastructure failure, retryable at the caller's
// discretion.
func statusForError(err error) int {
	var ownership *domain.OwnershipError
	var stock *domain.StockError
	var funds *domain.FundsError
	var quantity *domain.QuantityError

	switch {
	case errors.Is(err, domain.ErrActorNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	case errors.As(err, &ownership),
		errors.As(err, &stock),
		errors.As(err, &funds),
		errors.As(err, &quantity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflictRetryExhausted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
