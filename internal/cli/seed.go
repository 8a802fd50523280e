package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haggle-network/haggle/internal/daemon"
	"github.com/haggle-network/haggle/internal/domain"
	"github.com/haggle-network/haggle/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo accounts and inventory",
	Long:  `Insert a demo buyer, a demo merchant, and a small product catalog so a trade can run end to end.`,
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
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

	accounts := []domain.Account{
		{ID: "cust1", Name: "Asha", Balance: 100, NegotiationLimit: 0.1},
		{ID: "merch1", Name: "Bazaar Traders", Balance: 500, NegotiationLimit: 0.1},
	}
	for _, a := range accounts {
		if err := db.UpsertAccount(ctx, a); err != nil {
			return fmt.Errorf("seeding account %s: %w", a.ID, err)
		}
	}

	items := []domain.InventoryItem{
		{ProductID: "prod-clay-pot", OwnerID: "merch1", ProductName: "Clay Pot", UnitPrice: 10, Quantity: 5},
		{ProductID: "prod-wool-rug", OwnerID: "merch1", ProductName: "Wool Rug", UnitPrice: 45, Quantity: 2},
		{ProductID: "prod-brass-lamp", OwnerID: "merch1", ProductName: "Brass Lamp", UnitPrice: 22.5, Quantity: 8},
	}
	for _, it := range items {
		if err := db.UpsertInventory(ctx, it); err != nil {
			return fmt.Errorf("seeding product %s: %w", it.ProductID, err)
		}
	}

	fmt.Fprintf(os.Stdout, "Seeded %d accounts and %d products into %s\n", len(accounts), len(items), cfg.Store.Path)
	return nil
}
