package main

import (
	"github.com/spf13/cobra"
)

// skipConfigLoad marks commands that must run before a config file exists,
// such as "config init".
const skipConfigLoad = "skipConfigLoad"

func newRootCommand() *cobra.Command {
	var configPath string
	var verbose bool
	cctx := newCommandContext(&configPath, &verbose)

	cmd := &cobra.Command{
		Use:   "tailor",
		Short: "CV tailoring assistant",
		Long: `tailor drives a CV-tailoring backend from the terminal: upload a CV,
provide the job posting, run the alignment analysis, then chat with the
assistant to refine and generate the tailored documents. Voice input is
available wherever text is.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := cctx.ensureConfig()
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			cctx.close()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the config file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newRunCommand(cctx),
		newSessionCommand(cctx),
		newCVCommand(cctx),
		newJobCommand(cctx),
		newAnalyzeCommand(cctx),
		newChatCommand(cctx),
		newRecordCommand(cctx),
		newTranscribeCommand(cctx),
		newGenerateCommand(cctx),
		newArtifactsCommand(cctx),
		newStatusCommand(cctx),
		newConfigCommand(cctx),
	)
	return cmd
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for current := cmd; current != nil; current = current.Parent() {
		if current.Annotations[skipConfigLoad] == "true" {
			return true
		}
	}
	return false
}
