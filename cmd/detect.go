package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/camden-git/mediasysfaces/config"
)

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Detect faces in an image file",
	Long: `Run face detection on a single image file and print the outcome as JSON.
Nothing is written to the database.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().Bool("encodings", false, "Include face encodings in the output")
	detectCmd.Flags().String("backend", "", "Detector backend (cascade or pigo), overrides DETECTOR_BACKEND")
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	switch backend := mustGetString(cmd, "backend"); backend {
	case "":
	case config.DetectorCascade, config.DetectorPigo:
		cfg.DetectorBackend = backend
	default:
		return fmt.Errorf("unknown backend %q", backend)
	}

	faces, err := newFaceService(cfg)
	if err != nil {
		return err
	}
	defer faces.Close()

	outcome := faces.DetectFile(args[0])
	if !mustGetBool(cmd, "encodings") {
		for i := range outcome.Faces {
			outcome.Faces[i].Encoding = nil
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(outcome)
}
