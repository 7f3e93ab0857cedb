package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	liveness_usecase "gateman.io/application/usecases/liveness"
	"gateman.io/infrastructure"
	"gateman.io/infrastructure/biometric/frames"
	"gateman.io/infrastructure/biometric/landmarks"
	"gateman.io/infrastructure/biometric/liveness"
	"gateman.io/infrastructure/biometric/types"
	"gateman.io/infrastructure/database/repository/cache"
	"gateman.io/infrastructure/env"
	"gateman.io/infrastructure/logger"
	messagequeue "gateman.io/infrastructure/message_queue"
	startup "gateman.io/infrastructure/startUp"
)

type runOptions struct {
	FramesDir     string        `env:"LIVENESS_FRAMES_DIR"`
	LandmarksFile string        `env:"LIVENESS_LANDMARKS_FILE"`
	FrameInterval time.Duration `env:"LIVENESS_FRAME_INTERVAL" envDefault:"33ms"`
	Subject       string        `env:"LIVENESS_SUBJECT"`
	Backends      bool          `env:"LIVENESS_BACKENDS" envDefault:"false"`
	Seed          uint64        `env:"LIVENESS_SEED"`
	Port          string        `env:"PORT" envDefault:"8080"`
}

func init() {
	env.LoadEnv()
}

func main() {
	worker := flag.Bool("worker", false, "serve metrics and process liveness audit tasks instead of running a session")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, *worker))
}

func run(ctx context.Context, worker bool) int {
	var opts runOptions
	if err := env.ParseInto(&opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := startup.StartServices(opts.Backends || worker); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer startup.CleanUpServices()

	cfg, err := liveness.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid liveness configuration", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		})
		return 2
	}
	var lockouts *cache.LockoutStore
	if opts.Backends || worker {
		lockouts = cache.NewLockoutStore(&cache.RedisRepository{})
	}

	if worker {
		serverOpts := infrastructure.ServerOptions{Port: opts.Port, Config: cfg}
		if lockouts != nil {
			serverOpts.Lockouts = lockouts
		}
		if err := infrastructure.StartServer(ctx, serverOpts); err != nil {
			logger.Error("server stopped", logger.LoggerOptions{
				Key:  "error",
				Data: err,
			})
			return 1
		}
		return 0
	}

	result, err := runSession(ctx, opts, cfg, lockouts)
	if result != nil {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
	}
	switch {
	case err == nil:
		return 0
	case result == nil || errors.Is(err, liveness.ErrInvalidConfig):
		fmt.Fprintln(os.Stderr, err)
		return 2
	default:
		return 1
	}
}

func runSession(ctx context.Context, opts runOptions, cfg liveness.Config, lockouts *cache.LockoutStore) (*types.SessionResult, error) {
	if opts.FramesDir == "" || opts.LandmarksFile == "" {
		return nil, errors.New("LIVENESS_FRAMES_DIR and LIVENESS_LANDMARKS_FILE are required")
	}
	provider, err := landmarks.LoadReplayFile(opts.LandmarksFile, false)
	if err != nil {
		return nil, err
	}
	source := frames.NewDirectorySource(opts.FramesDir, opts.FrameInterval, false)

	var engineOpts []liveness.Option
	if opts.Seed != 0 {
		engineOpts = append(engineOpts, liveness.WithSeed(opts.Seed))
	}
	policy := liveness_usecase.DefaultPolicy()
	if err := env.ParseInto(&policy); err != nil {
		return nil, err
	}
	uc := liveness_usecase.VerifyLivenessUseCase{
		Runner: liveness.NewEngine(provider, cfg, engineOpts...),
		Policy: policy,
	}
	if lockouts != nil {
		uc.Lockouts = lockouts
		uc.Queue = messagequeue.TaskQueue
	}

	sink := liveness.FuncSink{
		StepChange: func(stepIndex int, sequence []types.ChallengeAction) {
			if stepIndex < len(sequence) {
				fmt.Fprintf(os.Stderr, "[%d/%d] %s %s\n", stepIndex+1, len(sequence), sequence[stepIndex].Icon, sequence[stepIndex].Label)
			}
		},
		StatusChange: func(message string) {
			fmt.Fprintln(os.Stderr, message)
		},
	}
	return uc.Execute(ctx, opts.Subject, source, sink)
}
