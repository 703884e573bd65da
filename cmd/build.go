package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AcaciaLinux/libpkgbuild/build"
	"github.com/AcaciaLinux/libpkgbuild/builddb"
	"github.com/AcaciaLinux/libpkgbuild/config"
	"github.com/AcaciaLinux/libpkgbuild/installer"
	"github.com/AcaciaLinux/libpkgbuild/log"
	"github.com/AcaciaLinux/libpkgbuild/pkgbuild"
)

var logFile string

var buildCmd = &cobra.Command{
	Use:   "build <recipe>",
	Short: "Build the package described by a recipe file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&logFile, "log-file", "",
		"append build progress to this file instead of stdout")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	recipeFile, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening recipe: %w", err)
	}
	pb, err := pkgbuild.Parse(recipeFile)
	recipeFile.Close()
	if err != nil {
		return fmt.Errorf("parsing recipe %s: %w", args[0], err)
	}

	var logger log.LibraryLogger = log.StdoutLogger{}
	if logFile != "" {
		fileLogger, err := log.NewFileLogger(logFile)
		if err != nil {
			return err
		}
		defer fileLogger.Close()
		logger = fileLogger
	}

	leaf := installer.NewLeaf(cfg.MirrorURL, logger)

	db, err := builddb.Open(filepath.Join(cfg.CacheDir(), "builds.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	runID := uuid.NewString()
	if _, err := db.StartRun(runID, pb.Name, pb.Version, pb.RealVersion, time.Now()); err != nil {
		return err
	}

	logger.Info("Building %s-%s-%d (run %s)", pb.Name, pb.Version, pb.RealVersion, runID)

	ctx, err := build.New(pb, cfg, leaf, logger)
	if err != nil {
		db.FinishRun(runID, false, time.Now())
		return err
	}
	defer ctx.Close()

	// The script runner forwards signals to a running phase; this
	// handler receives the same signals, during a phase as well as
	// between phases, releases the mounts and exits.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nReceived signal %v, cleaning up...\n", sig)
		ctx.Close()
		db.Close()
		os.Exit(1)
	}()

	buildErr := ctx.BuildPackage()
	if err := db.FinishRun(runID, buildErr == nil, time.Now()); err != nil {
		logger.Warn("Failed to record build result: %v", err)
	}

	if buildErr != nil {
		return buildErr
	}

	logger.Info("Artifacts are in %s", cfg.TargetDir(pb))
	return nil
}
