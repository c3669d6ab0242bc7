// cmd/kaikactl/reward.go
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yusukekikuta0509/projectKAIKA/internal/config"
	"github.com/yusukekikuta0509/projectKAIKA/internal/machine"
)

func newRewardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reward",
		Short: "Compute the KAIKA reward for a data collection",
		Long: `Compute the reward a collection of the given length and distance earns.

Examples:
  kaikactl reward --duration 30s
  kaikactl reward --duration 2m --distance 12.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			duration, _ := cmd.Flags().GetDuration("duration")
			distance, _ := cmd.Flags().GetFloat64("distance")
			if duration < 0 || distance < 0 {
				return fmt.Errorf("duration and distance must not be negative")
			}

			tuning, err := loadTuning(cmd)
			if err != nil {
				return err
			}
			seconds := int64(duration / time.Second)
			reward := machine.Reward(seconds, distance, rewardParams(tuning))

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"duration_seconds": seconds,
					"distance":         distance,
					"reward_kaika":     reward,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%ds, %.2f distance: %d KAIKA\n", seconds, distance, reward)
			return nil
		},
	}
	cmd.Flags().Duration("duration", 0, "Collection duration, whole seconds count")
	cmd.Flags().Float64("distance", 0, "Distance walked in grid units")
	return cmd
}

func rewardParams(t config.Tuning) machine.RewardParams {
	return machine.RewardParams{
		PerSecond:   t.Collection.RewardPerSecond,
		PerDistance: t.Collection.RewardPerDistance,
		Min:         t.Collection.MinReward,
	}
}

func loadTuning(cmd *cobra.Command) (config.Tuning, error) {
	path, _ := cmd.Flags().GetString("tuning")
	return config.LoadTuning(path)
}
