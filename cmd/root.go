package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/camden-git/mediasysfaces/config"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "mediasysfaces",
	Short: "Face detection, matching and tag review for a media library",
	Long: `mediasysfaces detects faces in uploaded images, encodes them, suggests
people for untagged faces and runs the review workflow that turns pending
face tags into approved ones.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file instead of .env")
}

func initConfig() {
	if envFile != "" {
		config.LoadDotEnv(envFile)
		return
	}
	config.LoadDotEnv()
}
