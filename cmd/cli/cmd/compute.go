package cmd

import (
	"github.com/spf13/cobra"
)

var loadflowCmd = &cobra.Command{
	Use:   "loadflow",
	Short: "Load-flow operations",
}

var loadflowRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load flow on a study",
	Long: `Run a load flow on the study's network.

The computation runs on the server in the background. The study's load-flow
status moves to RUNNING and settles on CONVERGED or DIVERGED; while it runs no
other computation or network modification is accepted for the study.`,
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := clientFromConfig(cmd)
		if !ok {
			return
		}
		owner, name, ok := ownerAndName(cmd)
		if !ok {
			return
		}

		if err := client.RunLoadFlow(owner, name); err != nil {
			printAPIError(cmd, err)
			return
		}
		cmd.Printf("✓ Load flow started for %s\n", name)
	},
}

var securityCmd = &cobra.Command{
	Use:   "security",
	Short: "Security-analysis operations",
}

var securityRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a security analysis on a study",
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := clientFromConfig(cmd)
		if !ok {
			return
		}
		owner, name, ok := ownerAndName(cmd)
		if !ok {
			return
		}
		lists, _ := cmd.Flags().GetStringSlice("contingency-list")
		if len(lists) == 0 {
			cmd.Println("Error: --contingency-list is required")
			return
		}

		if err := client.RunSecurityAnalysis(owner, name, lists); err != nil {
			printAPIError(cmd, err)
			return
		}
		cmd.Printf("✓ Security analysis started for %s\n", name)
	},
}

var securityStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of the last security analysis",
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := clientFromConfig(cmd)
		if !ok {
			return
		}
		owner, name, ok := ownerAndName(cmd)
		if !ok {
			return
		}

		status, err := client.SecurityAnalysisStatus(owner, name)
		if err != nil {
			printAPIError(cmd, err)
			return
		}
		cmd.Printf("Status: %s\n", status)
	},
}

func init() {
	addStudyFlags(loadflowRunCmd)
	loadflowCmd.AddCommand(loadflowRunCmd)

	addStudyFlags(securityRunCmd)
	securityRunCmd.Flags().StringSlice("contingency-list", nil, "Contingency list name (repeatable, required)")
	addStudyFlags(securityStatusCmd)
	securityCmd.AddCommand(securityRunCmd)
	securityCmd.AddCommand(securityStatusCmd)

	rootCmd.AddCommand(loadflowCmd)
	rootCmd.AddCommand(securityCmd)
}
