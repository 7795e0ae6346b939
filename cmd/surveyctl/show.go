// Show command: prints a stored survey response.
package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/baksh-audit/survey-backend/internal/models"
	"github.com/baksh-audit/survey-backend/internal/survey"
)

func newShowCmd(c *cli) *cobra.Command {
	var (
		key    survey.Key
		output string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a stored survey response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "yaml" {
				return fmt.Errorf("--output must be json or yaml, got %q", output)
			}

			svc := survey.NewService(c.store, survey.WithLogger(c.logger))
			lookup, err := svc.Get(cmd.Context(), key)
			if err != nil {
				return err
			}
			if !lookup.Found {
				return fmt.Errorf("no response stored at %s", lookup.Key.Path)
			}
			return writeDocument(cmd.OutOrStdout(), lookup.Document, output)
		},
	}

	cmd.Flags().StringVar(&key.Kind, "type", "", "subject kind: company or employee")
	cmd.Flags().StringVar(&key.CompanyID, "company-id", "", "company identifier")
	cmd.Flags().StringVar(&key.EmployeeID, "employee-id", "", "employee identifier (employee responses only)")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("company-id")
	return cmd
}

// writeDocument renders doc with its stored (JSON) field names in either
// format.
func writeDocument(w io.Writer, doc *models.SurveyDocument, format string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if format == "json" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}
