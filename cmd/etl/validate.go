package main

import (
	"github.com/spf13/cobra"

	"github.com/couchcryptid/ufo-sightings-etl/internal/adapter/tsv"
	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
	"github.com/couchcryptid/ufo-sightings-etl/internal/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse the input without geocoding or loading and report rejected rows",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reader, err := tsv.Open(cfg.Input, cfg.InputEncoding)
		if err != nil {
			return err
		}
		defer reader.Close() //nolint:errcheck

		var rejects pipeline.RejectSink
		if cfg.RejectsPath != "" {
			rw, err := tsv.CreateRejectFile(cfg.RejectsPath)
			if err != nil {
				return err
			}
			defer rw.Close() //nolint:errcheck
			rejects = rw
		}

		_, err = pipeline.Validate(cmd.Context(), reader, pipeline.ParserFunc(domain.ParseRow), cfg.ResumeOffset, rejects, logger)
		return err
	},
}
