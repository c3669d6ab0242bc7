// cmd/kaikactl/simulate.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/yusukekikuta0509/projectKAIKA/internal/machine"
	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
	"github.com/yusukekikuta0509/projectKAIKA/internal/services"
	"github.com/yusukekikuta0509/projectKAIKA/internal/utils"
)

const maxConnectAttempts = 3

type simulateOptions struct {
	Speed    float64
	Seed     uint64
	Feeling  string
	Terrain  string
	Walk     time.Duration
	Timeout  time.Duration
	JSON     bool
	LogLevel string
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a full demo session in the terminal",
		Long: `Run one session end to end: pair the insole, buy a feeling, play it,
walk a data collection and submit it. Every session event is printed.

Examples:
  kaikactl simulate
  kaikactl simulate --speed 0.01 --seed 7 --feeling lunar_dust
  kaikactl simulate --walk 1m --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := simulateOptions{JSON: jsonOutput(cmd)}
			opts.Speed, _ = cmd.Flags().GetFloat64("speed")
			opts.Seed, _ = cmd.Flags().GetUint64("seed")
			opts.Feeling, _ = cmd.Flags().GetString("feeling")
			opts.Terrain, _ = cmd.Flags().GetString("terrain")
			opts.Walk, _ = cmd.Flags().GetDuration("walk")
			opts.Timeout, _ = cmd.Flags().GetDuration("timeout")
			opts.LogLevel, _ = cmd.Flags().GetString("log-level")
			if opts.Speed <= 0 {
				return fmt.Errorf("--speed must be positive")
			}

			tuning, err := loadTuning(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			var sources services.SourceFactory
			if opts.Seed != 0 {
				sources = func(string) machine.Source { return machine.NewRandSource(opts.Seed) }
			}
			sim := newSimulation(cmd.OutOrStdout(), opts, services.NewConfigService(tuning.Scaled(opts.Speed), "", nil), sources)
			defer sim.sessions.Shutdown()
			return sim.run(ctx)
		},
	}
	cmd.Flags().Float64("speed", 0.05, "Multiplier applied to every simulated delay")
	cmd.Flags().Uint64("seed", 0, "Seed for the simulated outcomes (random when 0)")
	cmd.Flags().String("feeling", "tokyo_asphalt", "Feeling to buy and play")
	cmd.Flags().String("terrain", "city", "Terrain recorded by the data collection")
	cmd.Flags().Duration("walk", 30*time.Second, "Collection length before scaling by --speed")
	cmd.Flags().Duration("timeout", 2*time.Minute, "Give up after this long")
	cmd.Flags().String("log-level", "warn", "Log level for session internals")
	return cmd
}

type simulation struct {
	out      io.Writer
	outMu    sync.Mutex
	opts     simulateOptions
	start    time.Time
	sessions *services.SessionService
	session  *services.Session
}

func newSimulation(out io.Writer, opts simulateOptions, tuning *services.ConfigService, sources services.SourceFactory) *simulation {
	utils.GetLogger().SetLogLevel(utils.ParseLogLevel(opts.LogLevel))

	sim := &simulation{out: out, opts: opts, start: time.Now()}
	catalog, _ := services.NewCatalogService(nil, "")
	sim.sessions = services.NewSessionService(services.SessionServiceOptions{
		Config:  tuning,
		Catalog: catalog,
		Events:  services.EventSinkFunc(sim.printEvent),
		Metrics: utils.NewMetricsCollector(),
		Sources: sources,
	})
	return sim
}

func (sim *simulation) printEvent(evt models.Event) {
	sim.outMu.Lock()
	defer sim.outMu.Unlock()

	if sim.opts.JSON {
		data, _ := json.Marshal(evt)
		fmt.Fprintln(sim.out, string(data))
		return
	}
	fmt.Fprintf(sim.out, "[%7.3fs] %-22s %s\n", time.Since(sim.start).Seconds(), evt.Type, formatData(evt.Data))
}

func (sim *simulation) say(format string, args ...interface{}) {
	if sim.opts.JSON {
		return
	}
	sim.outMu.Lock()
	defer sim.outMu.Unlock()
	fmt.Fprintf(sim.out, "==> "+format+"\n", args...)
}

func formatData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	raw, _ := json.Marshal(data)
	return string(raw)
}

func (sim *simulation) run(ctx context.Context) error {
	sim.session = sim.sessions.Create()
	s := sim.session

	sim.say("wallet connected")
	if err := s.SetWallet(models.WalletState{Connected: true, PublicKey: "demo-wallet"}); err != nil {
		return err
	}

	if err := sim.connect(ctx); err != nil {
		return err
	}
	if err := sim.purchase(ctx); err != nil {
		return err
	}
	if err := sim.play(ctx); err != nil {
		return err
	}
	if err := sim.collect(ctx); err != nil {
		return err
	}

	balances := s.Balances()
	sim.say("done: %s USDC, %d KAIKA, %d transactions", balances.USDC, balances.KAIKA, len(s.Transactions()))
	return nil
}

func (sim *simulation) connect(ctx context.Context) error {
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		sim.say("pairing insole (attempt %d)", attempt)
		result, err := sim.session.ConnectDevice(ctx)
		if err != nil {
			return err
		}
		if result.Connected {
			return nil
		}
	}
	return fmt.Errorf("insole did not pair after %d attempts", maxConnectAttempts)
}

func (sim *simulation) purchase(ctx context.Context) error {
	s := sim.session
	for _, f := range s.Owned(models.CategoryAll) {
		if f.ID == sim.opts.Feeling {
			sim.say("%s already owned", f.Name)
			return nil
		}
	}

	sim.say("buying %s", sim.opts.Feeling)
	out, err := s.Purchase(sim.opts.Feeling)
	if err != nil {
		return err
	}
	if !out.Accepted {
		return fmt.Errorf("purchase rejected: %s %s", out.Reason, out.Notice)
	}
	return sim.waitFor(ctx, "purchase", func(snap services.Snapshot) bool { return snap.PurchasingID == "" })
}

func (sim *simulation) play(ctx context.Context) error {
	s := sim.session
	feeling := sim.opts.Feeling
	owned := false
	for _, f := range s.Owned(models.CategoryAll) {
		owned = owned || f.ID == feeling
	}
	if !owned {
		sim.say("purchase did not go through, playing beach_sand instead")
		feeling = "beach_sand"
	}

	out, err := s.SelectFeeling(feeling)
	if err != nil {
		return err
	}
	if !out.Accepted {
		return fmt.Errorf("select rejected: %s", out.Reason)
	}
	if err := sim.waitFor(ctx, "load", func(snap services.Snapshot) bool {
		return snap.Playback.SelectedID == feeling && snap.Playback.LoadingID == ""
	}); err != nil {
		return err
	}

	sim.say("playing %s", feeling)
	if _, err := s.TogglePlayback(); err != nil {
		return err
	}
	if !sleepCtx(ctx, 4*s.Tuning().Playback.ZoneInterval.Std()) {
		return ctx.Err()
	}
	_, err = s.TogglePlayback()
	return err
}

func (sim *simulation) collect(ctx context.Context) error {
	s := sim.session
	if out, err := s.SelectTerrain(sim.opts.Terrain); err != nil {
		return err
	} else if !out.Accepted {
		return fmt.Errorf("terrain rejected: %s", out.Reason)
	}

	sim.say("walking on %s", sim.opts.Terrain)
	if _, err := s.StartCollection(); err != nil {
		return err
	}
	if !sleepCtx(ctx, time.Duration(float64(sim.opts.Walk)*sim.opts.Speed)) {
		return ctx.Err()
	}
	if _, err := s.StopCollection(); err != nil {
		return err
	}

	out, err := s.SubmitCollection()
	if err != nil {
		return err
	}
	if !out.Accepted {
		return fmt.Errorf("submit rejected: %s", out.Reason)
	}
	return sim.waitFor(ctx, "submission", func(snap services.Snapshot) bool {
		return snap.Collection.State == models.CollectionIdle
	})
}

func (sim *simulation) waitFor(ctx context.Context, what string, done func(services.Snapshot) bool) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if done(sim.session.Snapshot()) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", what, ctx.Err())
		case <-ticker.C:
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
