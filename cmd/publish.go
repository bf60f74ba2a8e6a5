package main

import (
	"errors"
	"fmt"

	"github.com/opengs/speciesexport/publish"
	"github.com/spf13/cobra"
)

var publishCMD = &cobra.Command{
	Use:   "publish",
	Short: "Upload a finished export to S3",
	Long:  "Uploads every output file to an S3 compatible bucket. Refuses to run while the export still has a checkpoint.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}

		outputFolder := settings.GetString("output-folder")
		if outputFolder == "" {
			return errors.New("output folder is required")
		}
		bucket := settings.GetString("bucket")
		if bucket == "" {
			return errors.New("bucket is required")
		}

		store, release, err := openStore(cmd.Context(), outputFolder)
		if err != nil {
			return errors.Join(errors.New("failed to open checkpoint store"), err)
		}
		defer release()

		client, err := publish.NewClient(cmd.Context(), publish.ClientConfig{
			Region:          settings.GetString("region"),
			Endpoint:        settings.GetString("endpoint"),
			PathStyle:       settings.GetBool("path-style"),
			AccessKeyID:     settings.GetString("access-key-id"),
			SecretAccessKey: settings.GetString("secret-access-key"),
		})
		if err != nil {
			return err
		}

		publisher := publish.New(client, bucket, store,
			publish.WithPrefix(settings.GetString("prefix")),
			publish.WithParallelism(settings.GetInt64("parallelism")),
			publish.WithLogger(logger),
		)
		result, err := publisher.Publish(cmd.Context(), outputFolder)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d files, %d bytes\n", result.Files, result.Bytes)
		return nil
	},
}

func init() {
	publishCMD.Flags().String("output-folder", "", "Folder with the finished export")
	publishCMD.Flags().String("bucket", "", "Target bucket")
	publishCMD.Flags().String("prefix", "", "Key prefix prepended to every object")
	publishCMD.Flags().String("region", "us-east-1", "Bucket region")
	publishCMD.Flags().String("endpoint", "", "Custom S3 endpoint, for example a MinIO server")
	publishCMD.Flags().Bool("path-style", false, "Use path style bucket addressing")
	publishCMD.Flags().String("access-key-id", "", "Static access key. Default AWS credential chain is used when empty")
	publishCMD.Flags().String("secret-access-key", "", "Static secret key")
	publishCMD.Flags().Int64("parallelism", 4, "Number of simultaneous uploads")

	addStoreFlags(publishCMD)
}
