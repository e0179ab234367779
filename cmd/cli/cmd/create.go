package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// clientFromConfig builds a client from the resolved configuration, printing a
// hint when the identity is missing.
func clientFromConfig(cmd *cobra.Command) (*StudyClient, bool) {
	user := viper.GetString("user")
	if user == "" {
		cmd.Println("User identity not found. Please set it using the --user flag or the GRIDSTUDY_USER environment variable")
		return nil, false
	}
	return NewStudyClient(viper.GetString("url"), user), true
}

// printAPIError prints an error in a consistent format.
func printAPIError(cmd *cobra.Command, err error) {
	if apiErr, ok := err.(*APIError); ok {
		cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
	} else {
		cmd.Printf("Error: %v\n", err)
	}
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new study from a case",
	Long: `Create a new study by importing a case into a network.

The study name is claimed immediately; the import runs on the server in the
background. Use 'studyctl pending' to see requests still in flight and
'studyctl list' to see committed studies.

Example:
  studyctl create --name "my-study" --case 11111111-2222-3333-4444-555555555555
  studyctl create --name "private-study" --case <uuid> --private --description "winter peak"`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		name, _ := flags.GetString("name")
		caseUUID, _ := flags.GetString("case")
		description, _ := flags.GetString("description")
		private, _ := flags.GetBool("private")

		client, ok := clientFromConfig(cmd)
		if !ok {
			return
		}

		if name == "" {
			cmd.Println("Error: --name is required")
			return
		}
		if caseUUID == "" {
			cmd.Println("Error: --case is required")
			return
		}

		if err := client.CreateStudy(name, caseUUID, description, private); err != nil {
			printAPIError(cmd, err)
			return
		}

		cmd.Printf("✓ Study creation accepted!\nName: %s\nThe import runs in the background; check 'studyctl pending'.\n", name)
	},
}

func init() {
	flags := createCmd.Flags()
	flags.StringP("name", "n", "", "Name of the study (required)")
	flags.StringP("case", "c", "", "UUID of the case to import (required)")
	flags.StringP("description", "d", "", "Description of the study (optional)")
	flags.Bool("private", false, "Make the study visible only to you")

	rootCmd.AddCommand(createCmd)
}
