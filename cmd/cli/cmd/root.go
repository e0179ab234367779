package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "studyctl",
	Short: "Studyctl is a command line tool for interacting with the gridstudy service",
	Long: `studyctl is the command-line interface for the gridstudy power-grid study service.

A study binds an imported network case to load-flow and security-analysis
computations. Creation is asynchronous: the study name is claimed immediately
and the study appears once the network import commits.

Common workflows:

  Create a study from a case:
    studyctl create --name "my-study" --case 11111111-2222-3333-4444-555555555555

  List your studies (plus public studies of other users):
    studyctl list

  Show creation requests still in flight:
    studyctl pending

  Run a load flow:
    studyctl loadflow run --owner alice --name "my-study"

  Start a security analysis:
    studyctl security run --owner alice --name "my-study" --contingency-list n-1

Configuration:
  Set the API endpoint and identity via environment variables or a config file:
    GRIDSTUDY_URL     API endpoint (default: http://localhost:5001)
    GRIDSTUDY_USER    User identity sent as the userId header`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".studyctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".studyctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "GRIDSTUDY_VARNAME"
	viper.SetEnvPrefix("GRIDSTUDY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.studyctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:5001", "gridstudy server URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("user", "u", "", "User identity for API calls")
	viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
}
