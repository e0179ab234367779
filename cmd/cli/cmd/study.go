package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ownerAndName resolves the study addressed by the --owner and --name flags.
// The owner defaults to the caller's own identity.
func ownerAndName(cmd *cobra.Command) (string, string, bool) {
	flags := cmd.Flags()
	owner, _ := flags.GetString("owner")
	name, _ := flags.GetString("name")

	if owner == "" {
		owner = viper.GetString("user")
	}
	if name == "" {
		cmd.Println("Error: --name is required")
		return "", "", false
	}
	return owner, name, true
}

func addStudyFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("owner", "o", "", "Owner of the study (defaults to you)")
	cmd.Flags().StringP("name", "n", "", "Name of the study (required)")
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Show a study",
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := clientFromConfig(cmd)
		if !ok {
			return
		}
		owner, name, ok := ownerAndName(cmd)
		if !ok {
			return
		}

		study, err := client.GetStudy(owner, name)
		if err != nil {
			printAPIError(cmd, err)
			return
		}

		visibility := "public"
		if study.Private {
			visibility = "private"
		}
		cmd.Printf("Name:        %s\n", study.StudyName)
		cmd.Printf("Owner:       %s\n", study.UserID)
		if study.Description != "" {
			cmd.Printf("Description: %s\n", study.Description)
		}
		cmd.Printf("Visibility:  %s\n", visibility)
		cmd.Printf("Case:        %s (%s)\n", study.CaseUUID, study.CaseFormat)
		cmd.Printf("Network:     %s (%s)\n", study.NetworkUUID, study.NetworkID)
		cmd.Printf("Load flow:   %s\n", study.LoadFlowStatus)
		cmd.Printf("Security:    %s\n", study.SecurityAnalysisStatus)
		if study.SecurityAnalysisResultUUID != "" {
			cmd.Printf("SA result:   %s\n", study.SecurityAnalysisResultUUID)
		}
		cmd.Printf("Created:     %s\n", study.CreatedAt.Format("2006-01-02 15:04:05"))
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a study",
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := clientFromConfig(cmd)
		if !ok {
			return
		}
		owner, name, ok := ownerAndName(cmd)
		if !ok {
			return
		}

		if err := client.DeleteStudy(owner, name); err != nil {
			printAPIError(cmd, err)
			return
		}
		cmd.Printf("✓ Study deleted: %s\n", name)
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Rename a study",
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := clientFromConfig(cmd)
		if !ok {
			return
		}
		owner, name, ok := ownerAndName(cmd)
		if !ok {
			return
		}
		newName, _ := cmd.Flags().GetString("to")
		if newName == "" {
			cmd.Println("Error: --to is required")
			return
		}

		study, err := client.RenameStudy(owner, name, newName)
		if err != nil {
			printAPIError(cmd, err)
			return
		}
		cmd.Printf("✓ Study renamed to %s\n", study.StudyName)
	},
}

var publicCmd = &cobra.Command{
	Use:   "publish",
	Short: "Make a study visible to all users",
	Run: func(cmd *cobra.Command, args []string) {
		setVisibility(cmd, false)
	},
}

var privateCmd = &cobra.Command{
	Use:   "unpublish",
	Short: "Make a study visible only to you",
	Run: func(cmd *cobra.Command, args []string) {
		setVisibility(cmd, true)
	},
}

func setVisibility(cmd *cobra.Command, private bool) {
	client, ok := clientFromConfig(cmd)
	if !ok {
		return
	}
	owner, name, ok := ownerAndName(cmd)
	if !ok {
		return
	}

	if err := client.SetVisibility(owner, name, private); err != nil {
		printAPIError(cmd, err)
		return
	}
	if private {
		cmd.Printf("✓ Study %s is now private\n", name)
	} else {
		cmd.Printf("✓ Study %s is now public\n", name)
	}
}

func init() {
	addStudyFlags(getCmd)
	addStudyFlags(deleteCmd)
	addStudyFlags(renameCmd)
	renameCmd.Flags().String("to", "", "New name for the study (required)")
	addStudyFlags(publicCmd)
	addStudyFlags(privateCmd)

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(publicCmd)
	rootCmd.AddCommand(privateCmd)
}
