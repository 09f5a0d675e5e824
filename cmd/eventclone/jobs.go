package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/eventclone/internal/service"
)

var (
	sourceFlag    string
	targetFlag    string
	scopeFileFlag string
	kindsFlag     []string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Queue a clone job",
	Long: `Queue a clone job copying configuration from one context to another.

The scope comes from --scope-file, --kinds or both. Flags override the
context ids found in the scope file.

Example:
  eventclone submit --source event-2025 --target event-2026 --kinds main_zones,sub_zones,divisions`,
	RunE: runSubmit,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Queue an import job moving shared entity links between contexts",
	RunE:  runImport,
}

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a job and its step progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a queued or running job",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func init() {
	submitCmd.Flags().StringVar(&sourceFlag, "source", "", "Source context id")
	submitCmd.Flags().StringVar(&targetFlag, "target", "", "Target context id")
	submitCmd.Flags().StringVar(&scopeFileFlag, "scope-file", "", "YAML file with the request and its scope")
	submitCmd.Flags().StringSliceVar(&kindsFlag, "kinds", nil, "Entity kinds to copy or associate (comma separated)")

	importCmd.Flags().StringVar(&sourceFlag, "source", "", "Context the links move from")
	importCmd.Flags().StringVar(&targetFlag, "target", "", "Context the links move to")
	importCmd.Flags().StringSliceVar(&kindsFlag, "kinds", nil, "Shared kinds to move (default: all)")
	_ = importCmd.MarkFlagRequired("source")
	_ = importCmd.MarkFlagRequired("target")
}

// buildCloneRequest merges the scope file with the command line flags.
func buildCloneRequest() (service.CloneRequest, error) {
	var req service.CloneRequest
	if scopeFileFlag != "" {
		var err error
		if req, err = readCloneRequest(scopeFileFlag); err != nil {
			return req, err
		}
	}
	if sourceFlag != "" {
		req.SourceContextID = sourceFlag
	}
	if targetFlag != "" {
		req.TargetContextID = targetFlag
	}
	kinds, err := parseKinds(kindsFlag)
	if err != nil {
		return req, err
	}
	req.Scope = withKinds(req.Scope, kinds)
	return req, nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	req, err := buildCloneRequest()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	jobID, err := a.clones.Submit(cmd.Context(), req)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), jobID)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	kinds, err := parseKinds(kindsFlag)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	jobID, err := a.clones.SubmitImport(cmd.Context(), service.ImportRequest{
		SourceContextID: sourceFlag,
		TargetContextID: targetFlag,
		Kinds:           kinds,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), jobID)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.clones.Status(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), status)
}

func runCancel(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, err := a.clones.Cancel(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], outcome)
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
