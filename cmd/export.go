package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/opengs/speciesexport"
	"github.com/opengs/speciesexport/metrics"
	"github.com/opengs/speciesexport/serializer"
	"github.com/spf13/cobra"
)

var exportCMD = &cobra.Command{
	Use:   "export",
	Short: "Run or resume the species export",
	Long:  "Exports every species listed in the species folder. When a checkpoint exists the export continues from it and produces the same files as an uninterrupted run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		config := speciesexport.DefaultConfig()
		if err := settings.Unmarshal(&config); err != nil {
			return errors.Join(errors.New("failed to read export configuration"), err)
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}

		store, release, err := openStore(cmd.Context(), config.OutputFolder)
		if err != nil {
			return errors.Join(errors.New("failed to open checkpoint store"), err)
		}
		defer release()

		m := metrics.New()
		engine, err := speciesexport.NewEngine(config, store,
			speciesexport.WithMetrics(m),
			speciesexport.WithLogger(logger),
		)
		if err != nil {
			return err
		}

		summary, runErr := engine.Run(cmd.Context())

		if metricsFile := settings.GetString("metrics-file"); metricsFile != "" {
			if err := m.WriteTextfile(metricsFile); err != nil {
				logger.Error("failed to write metrics", "path", metricsFile, "error", err)
			}
		}

		if runErr != nil {
			logger.Error("export failed", "error", runErr, "summary", summary)
			return runErr
		}

		fmt.Fprintf(cmd.OutOrStdout(), "records: %d\nfiles: %d\nlast sequence id: %d\nresumed: %t\nmalformed index lines: %d\nunits without files: %d\nmalformed records: %d\n",
			summary.RecordsWritten, summary.FilesWritten, summary.LastSequenceID, summary.Resumed,
			summary.MalformedLines, summary.UnitsWithoutFiles, summary.MalformedRecords)
		return nil
	},
}

func init() {
	defaults := speciesexport.DefaultConfig()

	exportCMD.Flags().String("species-folder", "", "Folder with one index file per species")
	exportCMD.Flags().String("pmid-folder", "", "Folder with input record files")
	exportCMD.Flags().String("output-folder", "", "Folder that receives output files")

	exportCMD.Flags().String("separator", defaults.Separator, "Separator between fields of an index line")
	exportCMD.Flags().String("negative-tag", defaults.NegativeTag, "Filename tag of negative control files")
	exportCMD.Flags().String("input-extension", defaults.InputExtension, "Extension of input record files")
	exportCMD.Flags().Int("max-line-bytes", defaults.MaxLineBytes, "Longest accepted input record line in bytes")

	exportCMD.Flags().Int64("threshold", defaults.Threshold, "Maximum number of records in one chunk and one output file")
	exportCMD.Flags().Int64("commit-every", defaults.CommitInterval, "Records written between two checkpoint commits")
	exportCMD.Flags().Bool("sync", defaults.Sync, "Fsync output files before every checkpoint commit")

	exportCMD.Flags().String("format", defaults.Format, "Output format. Possible values are "+strings.Join(serializer.Formats, ", "))
	exportCMD.Flags().String("output-extension", "", "Extension of output files. Format default when empty")
	exportCMD.Flags().Int("buffer-size", defaults.BufferSize, "Write buffer of the open output file in bytes")
	exportCMD.Flags().String("file-mode", defaults.FileMode, "Octal permissions of created output and checkpoint files")

	exportCMD.Flags().String("metrics-file", "", "Write run metrics in Prometheus text format to this file")

	addStoreFlags(exportCMD)
}
