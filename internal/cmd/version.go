package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"

	"github.com/promptfill/promptfill/internal/output"
)

type versionReport struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	Go        string `json:"go,omitempty"`
	Gofulmen  string `json:"gofulmen,omitempty"`
	Crucible  string `json:"crucible,omitempty"`
}

func newVersionCmd() *cobra.Command {
	var extended bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print version information. Use --extended for build, Go and Crucible details.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := versionReport{Name: "promptfill", Version: versionInfo.Version}
			if identity := GetAppIdentity(); identity != nil && identity.BinaryName != "" {
				report.Name = identity.BinaryName
			}
			if extended {
				ssot := crucible.GetVersion()
				report.Commit = versionInfo.Commit
				report.BuildDate = versionInfo.BuildDate
				report.Go = runtime.Version()
				report.Gofulmen = ssot.Gofulmen
				report.Crucible = ssot.Crucible
			}

			out := cmd.OutOrStdout()
			if format, _ := resolveOutputFormat(); format == output.FormatJSON {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}

			fmt.Fprintf(out, "%s %s\n", report.Name, report.Version)
			if extended {
				fmt.Fprintf(out, "Commit: %s\n", report.Commit)
				fmt.Fprintf(out, "Built: %s\n", report.BuildDate)
				fmt.Fprintf(out, "Go: %s\n\n", report.Go)
				fmt.Fprintf(out, "Gofulmen: %s\n", report.Gofulmen)
				fmt.Fprintf(out, "Crucible: %s\n", report.Crucible)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
	return cmd
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
