package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haggle-network/haggle/internal/app/trader"
	"github.com/haggle-network/haggle/internal/daemon"
	"github.com/haggle-network/haggle/internal/domain"
	"github.com/haggle-network/haggle/internal/infra/gemini"
	"github.com/haggle-network/haggle/internal/infra/sqlite"
	"github.com/haggle-network/haggle/internal/negotiation"
	"github.com/haggle-network/haggle/internal/settlement"
)

func init() {
	rootCmd.AddCommand(tradeCmd)
	tradeCmd.Flags().IntP("quantity", "q", 1, "Quantity of the product to buy")
}

var tradeCmd = &cobra.Command{
	Use:   "trade BUYER_ID MERCHANT_ID PRODUCT_ID",
	Short: "Run one negotiation and settlement from the terminal",
	Long: `Negotiate the given product between the buyer and merchant agents,
print the transcript, and, if the dialogue agrees, settle the trade
atomically and print the receipt.`,
	Args: cobra.ExactArgs(3),
	RunE: runTrade,
}

func runTrade(cmd *cobra.Command, args []string) error {
	buyerID, sellerID, productID := args[0], args[1], args[2]
	quantity, _ := cmd.Flags().GetInt("quantity")

	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	llm, err := gemini.NewClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		return err
	}
	defer llm.Close()

	orchestrator := negotiation.New(
		negotiation.NewBuyerActor(llm),
		negotiation.NewSellerActor(llm),
		db,
	)
	engine := settlement.New(db, settlement.Config{MaxRetries: cfg.Settlement.MaxRetries})
	t := trader.New(db, orchestrator, engine)

	cart := []domain.CartLine{{ProductID: productID, Quantity: quantity}}
	result, err := t.Execute(ctx, buyerID, sellerID, cart)

	if result != nil && result.Session != nil {
		fmt.Fprintln(os.Stdout, "Negotiation transcript:")
		for _, line := range result.Session.ConversationLog() {
			fmt.Fprintf(os.Stdout, "  %s\n", line)
		}
		fmt.Fprintln(os.Stdout, "")
	}

	if errors.Is(err, domain.ErrNegotiationBreakdown) {
		fmt.Fprintln(os.Stdout, "Negotiation broke down; no trade settled.")
		return nil
	}
	if err != nil {
		return err
	}

	r := result.Receipt
	fmt.Fprintf(os.Stdout, "Receipt %s\n", r.TransactionID)
	fmt.Fprintf(os.Stdout, "  %s → %s\n", r.BuyerName, r.MerchantName)
	for _, item := range r.Items {
		fmt.Fprintf(os.Stdout, "  %d × %s @ %.2f\n", item.Quantity, item.ProductName, item.Price)
	}
	fmt.Fprintf(os.Stdout, "  Original total:      %.2f\n", r.OriginalTotal)
	fmt.Fprintf(os.Stdout, "  Negotiated discount: %.2f\n", r.NegotiatedDiscount)
	fmt.Fprintf(os.Stdout, "  Final total:         %.2f\n", r.FinalTotal)
	return nil
}
