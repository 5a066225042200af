package main

import (
	"github.com/spf13/cobra"

	"github.com/ipafleet/ipa-sentinel/internal/output"
)

var checkCmd = &cobra.Command{
	Use:          "check",
	Short:        "Detect device and release changes",
	Long:         "Compares the device roster and upstream release versions against the cached state and emits the rebuild set, without building anything.",
	RunE:         runCheck,
	SilenceUsage: true,
}

func runCheck(cmd *cobra.Command, args []string) error {
	det, err := detect(cmd.Context())
	if err != nil {
		return err
	}

	writer := output.NewWriter(det.logger, det.cfg.GitHubOutput, cmd.OutOrStdout())
	return writer.Emit(output.Result{
		RebuildAll:   det.plan.RebuildAll,
		RebuildTasks: det.plan.Tasks,
		ForceRebuild: det.forceRebuild,
		DevicesMoved: det.devicesChanged,
	})
}
