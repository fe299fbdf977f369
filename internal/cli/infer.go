package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vibemesh/vibemesh/internal/cell"
	"github.com/vibemesh/vibemesh/internal/config"
	"github.com/vibemesh/vibemesh/internal/engine"
	"github.com/vibemesh/vibemesh/internal/global"
	"github.com/vibemesh/vibemesh/internal/mesh"
	"github.com/vibemesh/vibemesh/internal/store"
	"github.com/vibemesh/vibemesh/internal/vibe"
)

var (
	inferAgent     string
	inferLat       float64
	inferLon       float64
	inferPrecision int
)

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Run a one-shot inference against the local database",
	Long:  "Infers the vibe vector for a location without starting the daemon. Uses cached global state only — no remote fetch.",
	RunE:  runInfer,
}

func init() {
	inferCmd.Flags().StringVar(&inferAgent, "agent", "", "pseudonymous agent handle (required)")
	inferCmd.Flags().Float64Var(&inferLat, "lat", 0, "latitude")
	inferCmd.Flags().Float64Var(&inferLon, "lon", 0, "longitude")
	inferCmd.Flags().IntVar(&inferPrecision, "precision", 7, "geohash precision (1-12)")
	inferCmd.MarkFlagRequired("agent")
	inferCmd.MarkFlagRequired("lat")
	inferCmd.MarkFlagRequired("lon")
}

func runInfer(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Cache-and-default tiers only: a one-shot debug read should not
	// block on the network.
	repo := global.NewRepository(db, nil)
	eng := engine.New(repo, db, mesh.New(db, mesh.DefaultTTL))

	key := cell.FromLatLon(inferLat, inferLon, inferPrecision)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	vector := eng.InferVector(ctx, inferAgent, key)

	fmt.Printf("%s\n", key.StableKey())
	for i, name := range vibe.DimensionNames {
		fmt.Printf("  %-26s %.4f\n", name, vector[i])
	}
	return nil
}
