package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"actms/internal/fraud"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Retrain the anomaly model on the stored bids",
	Long: `Fits a new isolation forest on every stored bid and saves it to the model
directory. With fewer bids than fraud.min_training_bids synthetic data is
used instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.log.Sync()

		ctx := cmd.Context()
		conn, store, err := e.openStorage(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		detector := fraud.NewDetector(store, fraudOptions(e), e.log)
		res, err := detector.Train(ctx)
		if err != nil {
			return fmt.Errorf("training model: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "trained on %s data: %d samples, %d outliers (%.1f%%), threshold %.3f\n",
			res.Source, res.Samples, res.OutliersDetected, res.OutlierPercentage, res.ScoreThreshold)
		return nil
	},
}
