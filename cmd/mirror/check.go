package main

import (
	"fmt"
	"log/slog"

	"github.com/abihf/smartmirror/vision"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var checkFrames int

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Capture a few frames and print what the model sees",
	RunE: func(cmd *cobra.Command, args []string) error {
		if isAlreadyRun(conf.PidFile) {
			return errors.New("daemon is running and owns the camera, stop it first")
		}
		log := slog.Default()

		det, err := loadDetectors()
		if err != nil {
			return err
		}
		defer det.cascade.Close()
		fmt.Println("Cascade:", det.cascade.Path())

		faceModel := newModel(log)
		defer faceModel.Close()
		if err := faceModel.Load(); err != nil {
			if errors.Is(err, vision.ErrModelNotFound) {
				return errors.New("no trained model yet, enroll someone or run train")
			}
			return err
		}

		cams := openCameras(log)
		defer cams.close()

		for i := 0; i < checkFrames; i++ {
			frame, err := cams.recognition.Capture(cmd.Context())
			if err != nil {
				return err
			}
			gray := vision.Gray(frame)
			faces := det.recognition.Detect(gray)
			if len(faces) == 0 {
				fmt.Printf("frame %d: no face detected\n", i)
				continue
			}
			for _, f := range faces {
				label, confidence, err := faceModel.Predict(vision.Crop(gray, f))
				if err != nil {
					fmt.Printf("frame %d: %v: %v\n", i, f, err)
					continue
				}
				name, _ := faceModel.Name(label)
				verdict := "unknown"
				if confidence < conf.Recognition.Threshold {
					verdict = "recognized"
				}
				fmt.Printf("frame %d: %v: %s confidence %.1f (%s)\n", i, f, name, confidence, verdict)
			}
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().IntVarP(&checkFrames, "frames", "n", 5, "Number of frames to capture")
	rootCmd.AddCommand(checkCmd)
}
