package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"portfolio-functions/internal/cv"
)

func newCVCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cv",
		Short: "Manage the published CV",
	}
	cmd.AddCommand(newCVFetchCmd(a))
	return cmd
}

func newCVFetchCmd(a *app) *cobra.Command {
	var url, out, meta string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the CV and write its metadata sidecar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" {
				url = a.cfg.CV.URL
			}
			f := cv.NewFetcher(
				cv.WithHTTPClient(a.deps.HTTPClient),
				cv.WithFilePrefix(a.cfg.CV.FilePrefix),
				cv.WithPaths(out, meta),
			)
			res, err := f.Fetch(cmd.Context(), url)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if res.Downloaded {
				fmt.Fprintf(w, "downloaded %s to %s\n", humanize.Bytes(uint64(res.SizeBytes)), out)
			} else {
				fmt.Fprintln(w, "CV_URL not set, wrote default metadata")
			}
			fmt.Fprintf(w, "metadata: %s (%s) -> %s\n", res.Metadata.FileName, res.Metadata.DisplayDate, meta)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "CV download URL (default: $CV_URL)")
	cmd.Flags().StringVar(&out, "out", cv.DefaultOutputPath, "where to write the PDF")
	cmd.Flags().StringVar(&meta, "meta", cv.DefaultMetadataPath, "where to write the JSON sidecar")
	return cmd
}
