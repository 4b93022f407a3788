package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickchristie/agentcore"
	"github.com/rickchristie/agentcore/agent"
	"github.com/rickchristie/agentcore/checkpoint"
	"github.com/rickchristie/agentcore/config"
	"github.com/rickchristie/agentcore/hooks"
	"github.com/rickchristie/agentcore/hooks/logging"
	"github.com/rickchristie/agentcore/hooks/tracing"
	"github.com/rickchristie/agentcore/providers/inmem"
	"github.com/rickchristie/agentcore/statestore"
)

func runCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run [topic]",
		Short: "Start a new run on a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), opts, args[0], "")
		},
	}
	opts.bind(cmd)
	return cmd
}

func resumeCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "resume [session-id] [topic]",
		Short: "Resume a paused run, skipping the steps it already completed",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var topic string
			if len(args) == 2 {
				topic = args[1]
			}
			return runAgent(cmd.Context(), opts, topic, args[0])
		},
	}
	opts.bind(cmd)
	return cmd
}

type runOptions struct {
	stepDelay   time.Duration
	autoApprove bool
}

func (o *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&o.stepDelay, "step-delay", 2*time.Second, "delay of each echo model call")
	cmd.Flags().BoolVar(&o.autoApprove, "yes", false, "approve the publish checkpoint without asking")
}

// runtime holds everything one run needs and knows how to release it.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *logging.Metrics
	state    *statestore.Manager
	approval *checkpoint.Manager
	memory   *inmem.Memory
	tasks    *inmem.TaskQueue
	agent    *agent.Agent
	closers  []func(context.Context) error
}

func (rt *runtime) close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			rt.logger.Warn("shutdown failed", "err", err)
		}
	}
}

func newRuntime(ctx context.Context, cfg *config.Config, notifier checkpoint.Notifier) (*runtime, error) {
	rt := &runtime{
		cfg:     cfg,
		logger:  newLogger(os.Stderr, cfg).With("agent_id", cfg.AgentID),
		metrics: logging.NewMetrics(),
	}

	state, err := cfg.OpenStateStore(rt.logger)
	if err != nil {
		return nil, err
	}
	rt.state = state

	store, closeStore, err := cfg.OpenCheckpointStore()
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func(context.Context) error { return closeStore() })

	cpCfg := cfg.CheckpointManagerConfig(store, rt.logger)
	cpCfg.Notifier = notifier
	rt.approval = checkpoint.NewManager(cpCfg)

	logOpts := []logging.Option{logging.WithMetrics(rt.metrics)}
	if cfg.Log.DumpPayloads {
		logOpts = append(logOpts, logging.WithYAMLDump(os.Stderr))
	}
	registry := hooks.NewRegistry().
		Register(logging.New(rt.logger, logOpts...)).
		Register(rt.state).
		Register(rt.approval)

	if cfg.Tracing.Enabled {
		tp, err := newTracerProvider(ctx, cfg.Tracing)
		if err != nil {
			rt.close(ctx)
			return nil, err
		}
		rt.closers = append(rt.closers, tp.Shutdown)
		registry.Register(tracing.New(tp.Tracer("github.com/rickchristie/agentcore")))
	}

	governance, err := inmem.NewGovernance(inmem.EffectAllow,
		inmem.Rule{Pattern: "publish*", Effect: inmem.EffectRequireApproval, Reason: "publishing is reviewed"})
	if err != nil {
		rt.close(ctx)
		return nil, err
	}

	rt.memory = inmem.NewMemory()
	if err := seedMemory(ctx, rt.memory); err != nil {
		rt.close(ctx)
		return nil, err
	}
	rt.tasks = inmem.NewTaskQueue()

	agentCfg := agent.DefaultConfig(cfg.AgentID)
	agentCfg.Hooks = registry.Hooks()
	agentCfg.Logger = rt.logger
	agentCfg.Governance = governance
	agentCfg.Memory = rt.memory
	agentCfg.Tasks = rt.tasks
	a, err := agent.New(agentCfg)
	if err != nil {
		rt.close(ctx)
		return nil, err
	}
	rt.agent = a
	return rt, nil
}

func runAgent(ctx context.Context, opts runOptions, topic, resumeID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.autoApprove {
		cfg.Checkpoint.AutoApprove = append(cfg.Checkpoint.AutoApprove, CheckpointPublish)
	}

	rl, err := readline.New("> ")
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	prompter := &approvalPrompt{rl: rl}
	notifier := checkpoint.NewQueuedNotifier(prompter)
	rt, err := newRuntime(ctx, cfg, notifier)
	if err != nil {
		notifier.Close(ctx)
		return err
	}
	// A prompt still waiting for an answer when the run ends is abandoned.
	rt.closers = append(rt.closers, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := notifier.Close(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})
	defer rt.close(context.WithoutCancel(ctx))
	prompter.manager = rt.approval

	model, err := openModel(cfg.Model, opts.stepDelay)
	if err != nil {
		return err
	}

	if resumeID != "" {
		rs, err := rt.state.Resume(resumeID)
		if err != nil {
			return err
		}
		if err := rt.agent.Resume(rs); err != nil {
			return err
		}
		fmt.Fprintf(rl.Stdout(), "resuming %s, skipping %d completed steps\n", resumeID, len(rs.Completed))
	}

	if topic != "" {
		rt.tasks.Push(agentcore.Task{
			Description: "write about " + topic,
			Payload:     map[string]any{"topic": topic},
		})
	}
	out, err := execute(ctx, rt.agent, writerFlow(model), nil)
	report(rl, rt, out, err)
	if agentcore.OutcomeOf(err) == agentcore.RunPaused {
		return nil
	}
	return err
}

// execute runs the flow while watching for Ctrl-C. The first interrupt asks the agent
// to pause at its next step boundary; a second one cancels the run.
func execute(ctx context.Context, a *agent.Agent, flow agent.Flow, task any) (any, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt)
	defer signal.Stop(signals)

	var out any
	var runErr error
	done := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		out, runErr = a.Execute(gctx, flow, task)
		return nil
	})
	g.Go(func() error {
		interrupts := 0
		for {
			select {
			case <-done:
				return nil
			case <-signals:
				interrupts++
				if interrupts > 1 {
					cancel()
					continue
				}
				if _, err := a.SendInterrupt(gctx, statestore.DefaultPauseReason, nil); err != nil {
					return err
				}
			}
		}
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Join(runErr, err)
	}
	return out, runErr
}

func report(rl *readline.Instance, rt *runtime, out any, err error) {
	w := rl.Stdout()
	var sessionID string
	if sess := rt.agent.Session(); sess != nil {
		sessionID = sess.ID()
	}

	switch agentcore.OutcomeOf(err) {
	case agentcore.RunCompleted:
		fmt.Fprintf(w, "\n%v\n\n", out)
	case agentcore.RunPaused:
		fmt.Fprintf(w, "\npaused. resume with: agentdemo resume %s\n", sessionID)
	default:
		fmt.Fprintf(w, "\nrun failed (%s): %v\n", agentcore.ClassifyError(err), err)
	}

	counters := rt.metrics.Counters()
	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-40s %d\n", strings.TrimPrefix(k, logging.KeyPrefix), counters[k])
	}
	if path, err := rt.state.Path(sessionID); err == nil {
		fmt.Fprintf(w, "session %s, state in %s\n", sessionID, path)
	}
}
