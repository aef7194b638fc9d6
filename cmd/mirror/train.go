package main

import (
	"fmt"
	"log/slog"

	"github.com/abihf/smartmirror/dataset"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Retrain the face model from the sample dataset",
	Long: `train rebuilds the face model from every person in the dataset
directory and atomically replaces the current model. Stop the daemon first
or restart it afterwards so recognition picks up the new model.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := slog.Default()
		samples := dataset.New(conf.Paths.Dataset, log.With("component", "dataset"))
		set, err := samples.Load()
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %d samples of %d people from %s\n", len(set.Samples), set.Labels.Len(), samples.Root())

		faceModel := newModel(log)
		defer faceModel.Close()
		if err := faceModel.Train(set); err != nil {
			return errors.Wrap(err, "training failed")
		}
		for i, name := range set.Labels.Names() {
			fmt.Printf("  %3d  %s\n", i, name)
		}
		fmt.Println("Model saved to", conf.Paths.Model)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
}
