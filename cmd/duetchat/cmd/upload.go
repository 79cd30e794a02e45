package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/duetapp/duetchat/internal/api"
	"github.com/duetapp/duetchat/internal/config"
	"github.com/duetapp/duetchat/internal/upload"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload an attachment and print its descriptor",
	Long: `Upload a media file through the three-step presigned flow and print the
persisted attachment descriptor. The attachment id can then be sent from an
interactive session.

Accepted types: jpeg, png, gif, mp4, quicktime. Maximum size: 50 MiB.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	apiClient := api.New(cfg.APIBaseURL, cfg.Token)
	uploader := upload.New(apiClient)

	media, err := uploader.Upload(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Uploaded %s (%d bytes)\n  id:  %d\n  key: %s\n", media.FileName, media.FileSize, media.ID, media.Key)
	return nil
}
