package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every artifact against the build manifest",
	Long:  "Rehashes every file recorded in the build manifest and reports the ones that are missing or changed. Exits non-zero on any mismatch.",
	Args:  cobra.NoArgs,
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("verify", err)
	}
	defer s.Close()

	bad, err := s.Verify(flagOut)
	if err != nil {
		return outputError("verify", err)
	}
	out := make([]CLIMismatch, len(bad))
	for i, m := range bad {
		out[i] = CLIMismatch{Path: m.Artifact.Path, Kind: m.Artifact.Kind, Project: m.Artifact.Project, Reason: m.Reason}
	}
	if err := outputResult(CLIResult{Command: "verify", Results: out, TotalCount: intPtr(len(out))}); err != nil {
		return err
	}
	if len(out) > 0 {
		return fmt.Errorf("%d artifact(s) do not match the manifest", len(out))
	}
	return nil
}
