package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chaz8081/speechprep/internal/config"
	"github.com/chaz8081/speechprep/internal/models"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage transcription models",
}

var modelDownloadCmd = &cobra.Command{
	Use:   "download [name]",
	Short: "Download a whisper ggml model",
	Long: `Downloads a whisper.cpp ggml model from HuggingFace into the models
directory. The name may be short ("base.en") or the file name
("ggml-base.en.bin"). Default: ` + models.DefaultWhisperModel + `.

Available: ` + strings.Join(models.WhisperModels, ", "),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		if len(args) == 1 {
			name = args[0]
		}
		path, err := models.DownloadWhisper(cmd.Context(), modelDir, name, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nModel ready: %s\nSet transcribe.model_path to use it.\n", path)
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	// Skip loading a config that may not exist yet.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := config.WriteDefault()
		if err != nil {
			return err
		}
		if path == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Config already exists: %s\n", config.DefaultConfigPath())
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var modelDir string

func init() {
	rootCmd.AddCommand(modelCmd, initCmd)
	modelCmd.AddCommand(modelDownloadCmd)
	modelDownloadCmd.Flags().StringVar(&modelDir, "dir", config.DefaultModelsDir(), "directory to store models in")
}
