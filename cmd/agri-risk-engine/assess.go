package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/i474232898/agri-risk-engine/internal/risk"
)

func newAssessCmd() *cobra.Command {
	var (
		lat, lon   float64
		crop       string
		start, end string
	)
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Run one risk assessment and print it as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			startDate, err := risk.ParseDate(start)
			if err != nil {
				return err
			}
			endDate, err := risk.ParseDate(end)
			if err != nil {
				return err
			}

			// A private registry keeps one-shot runs off the default one.
			a, err := newApp(cmd.Context(), prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer a.close()

			out, err := a.service.Assess(cmd.Context(), risk.Request{
				Latitude:  lat,
				Longitude: lon,
				Crop:      strings.ToLower(crop),
				Start:     startDate,
				End:       endDate,
			})
			var fatal *risk.FatalError
			if err != nil && !errors.As(err, &fatal) {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(out); encErr != nil {
				return encErr
			}
			return err
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude (-90 to 90)")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude (-180 to 180)")
	cmd.Flags().StringVar(&crop, "crop", "", "crop type (rice, wheat, potato, jute, corn)")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYYMMDD or YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYYMMDD or YYYY-MM-DD)")
	for _, f := range []string{"lat", "lon", "crop", "start", "end"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
