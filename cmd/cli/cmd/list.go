package cmd

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your studies and public studies of other users",
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := clientFromConfig(cmd)
		if !ok {
			return
		}

		studies, err := client.ListStudies()
		if err != nil {
			printAPIError(cmd, err)
			return
		}

		if len(studies) == 0 {
			cmd.Println("No studies found.")
			return
		}

		cmd.Printf("%-24s %-12s %-10s %-12s %-10s\n", "NAME", "OWNER", "FORMAT", "LOADFLOW", "VISIBILITY")
		for _, s := range studies {
			visibility := "public"
			if s.Private {
				visibility = "private"
			}
			cmd.Printf("%-24s %-12s %-10s %-12s %-10s\n", s.StudyName, s.UserID, s.CaseFormat, s.LoadFlowStatus, visibility)
		}
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List your study creation requests still in flight",
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := clientFromConfig(cmd)
		if !ok {
			return
		}

		requests, err := client.ListCreationRequests()
		if err != nil {
			printAPIError(cmd, err)
			return
		}

		if len(requests) == 0 {
			cmd.Println("No creation requests in flight.")
			return
		}

		cmd.Printf("%-24s %-12s %s\n", "NAME", "OWNER", "SUBMITTED")
		for _, r := range requests {
			cmd.Printf("%-24s %-12s %s\n", r.StudyName, r.UserID, r.SubmittedAt.Format("2006-01-02 15:04:05"))
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(pendingCmd)
}
