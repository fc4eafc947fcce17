// Package main provides the CLI entry point for exclone.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ukaji3/exclone-go/pkg/exclone"
	"github.com/ukaji3/exclone-go/pkg/exclone/models"
	"github.com/ukaji3/exclone-go/pkg/exclone/repository"
	"github.com/ukaji3/exclone-go/pkg/exclone/repository/fsrepo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	repoDir     string
	configPath  string
	sheetName   string
	reportPath  string
	reportDir   string
	timeout     string
	targetGroup string
	memberMode  string
	hostProcess string
	verbose     bool

	logger = zap.NewNop()
)

func main() {
	os.Exit(exitCode(newRootCmd().Execute()))
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "exclone",
		Short: "Clone program structure from an annotated workbook",
		Long: `exclone reads highlighted rows of an engineering workbook, derives
source-to-target name substitutions and clones the matching groups and blocks
of a program structure. A line-oriented build report is always written.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(verbose)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&repoDir, "repo", ".", "Structure repository directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML options file")
	rootCmd.PersistentFlags().StringVar(&targetGroup, "target-group", "", "Group path used as the working root")
	rootCmd.PersistentFlags().StringVarP(&reportPath, "report", "o", "", "Report (or export error log) path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	buildCmd := &cobra.Command{
		Use:   "build [workbook.xlsx]",
		Short: "Clone structure described by a workbook",
		Args:  cobra.ExactArgs(1),
		RunE:  runBuild,
	}
	buildCmd.Flags().StringVar(&sheetName, "sheet", "", "Worksheet name (default: first sheet)")
	buildCmd.Flags().StringVar(&reportDir, "report-dir", "", "Directory for timestamped reports")
	buildCmd.Flags().StringVar(&timeout, "timeout", "", "Bound the whole build, e.g. 15m")
	buildCmd.Flags().StringVar(&memberMode, "members", "", "Member pass: auto, on, off")
	buildCmd.Flags().StringVar(&hostProcess, "host-process", "", "Host executable name terminated after a timeout")

	exportCmd := &cobra.Command{
		Use:   "export [dir]",
		Short: "Export every block below the working root",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}

	rootCmd.AddCommand(buildCmd, exportCmd)
	return rootCmd
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func loadOptions() (exclone.Options, error) {
	opts := exclone.DefaultOptions()
	if configPath != "" {
		var err error
		if opts, err = exclone.LoadOptions(configPath); err != nil {
			return opts, err
		}
	}
	if err := opts.ApplyEnv(); err != nil {
		return opts, err
	}

	if sheetName != "" {
		opts.Sheet = sheetName
	}
	if reportPath != "" {
		opts.ReportPath = reportPath
	}
	if reportDir != "" {
		opts.ReportDir = reportDir
	}
	if targetGroup != "" {
		opts.TargetGroup = targetGroup
	}
	if hostProcess != "" {
		opts.HostProcess = hostProcess
	}
	switch exclone.MemberMode(memberMode) {
	case "":
	case exclone.MembersAuto, exclone.MembersOn, exclone.MembersOff:
		opts.MemberMode = exclone.MemberMode(memberMode)
	default:
		return opts, fmt.Errorf("invalid members mode: %s (must be auto, on, or off)", memberMode)
	}
	if timeout != "" {
		d, err := exclone.ParseTimeout(timeout)
		if err != nil {
			return opts, err
		}
		opts.Timeout = d
	}
	opts.Logger = logger
	return opts, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	workbook := args[0]
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	open := func() (repository.Repository, error) {
		repo, err := fsrepo.Open(repoDir, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}

	var res *models.BuildResult
	if opts.Timeout > 0 {
		res, err = exclone.BuildWithDeadline(workbook, open, opts, nil)
	} else {
		res, err = exclone.BuildOpen(workbook, open, opts)
	}
	if res != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "blocks created: %d, folders created: %d, members added: %d, skipped: %d, errors: %d\nreport: %s\n",
			res.BlocksCreated, res.FoldersCreated, res.MembersAdded, res.Skipped, res.Errors, res.ReportPath)
	}
	return err
}

func runExport(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	repo, err := fsrepo.Open(repoDir, logger)
	if err != nil {
		return err
	}
	res, err := exclone.Export(repo, args[0], opts)
	if res != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "exported: %d, failed: %d\nerror log: %s\n",
			res.Exported, len(res.Failures), res.LogPath)
	}
	return err
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch exclone.CategoryOf(err) {
	case exclone.CategorySuccess:
		return 0
	case exclone.CategoryConnectionLost:
		return 2
	case exclone.CategoryObjectInvalid:
		return 3
	case exclone.CategoryBadTimeout:
		return 4
	case exclone.CategoryTimedOut:
		return 5
	}
	return 1
}
