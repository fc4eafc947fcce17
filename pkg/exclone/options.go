// Package exclone clones parameterized structure in a program tree, driven
// by an annotated spreadsheet.
package exclone

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/ukaji3/exclone-go/pkg/exclone/patch"
	"github.com/ukaji3/exclone-go/pkg/exclone/replicate"
	"github.com/ukaji3/exclone-go/pkg/exclone/sheet"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// MemberMode controls the member-injection pass.
type MemberMode string

const (
	// MembersAuto runs the pass only when the sheet carries the member columns.
	MembersAuto MemberMode = "auto"
	// MembersOn requires the member columns; missing headers abort the build.
	MembersOn MemberMode = "on"
	// MembersOff skips the pass.
	MembersOff MemberMode = "off"
)

// Environment variables read by ApplyEnv.
const (
	EnvReportDir   = "EXCLONE_REPORT_DIR"
	EnvHostProcess = "EXCLONE_HOST_PROCESS"
	EnvTimeout     = "EXCLONE_TIMEOUT"
)

// Options configures a build.
type Options struct {
	// Sheet is the worksheet name; empty means the first sheet.
	Sheet   string             `yaml:"sheet"`
	Columns sheet.Columns      `yaml:"columns"`
	Members sheet.MemberConfig `yaml:"members"`
	// MemberMode selects the member pass (auto, on, off).
	MemberMode MemberMode   `yaml:"member_mode"`
	Patch      patch.Config `yaml:"patch"`
	// TargetGroup is a slash path below the repository root used as the working root.
	TargetGroup string `yaml:"target_group"`
	// Whitelist is the target-name policy applied before cloning.
	Whitelist replicate.SuffixWhitelist `yaml:"whitelist"`
	// FallbackNumber numbers instance records when nothing else applies.
	FallbackNumber int `yaml:"fallback_instance_number"`

	ReportPath string `yaml:"report_path"`
	ReportDir  string `yaml:"report_dir"`
	ReportCap  int    `yaml:"report_cap"`
	TempDir    string `yaml:"temp_dir"`

	// Timeout bounds the whole build when positive.
	Timeout time.Duration `yaml:"timeout"`
	// HostProcess names the host executable terminated after a timeout.
	HostProcess string `yaml:"host_process"`
	// KillWait bounds the wait for each terminated process.
	KillWait time.Duration `yaml:"kill_wait"`

	Logger *zap.Logger `yaml:"-"`
}

// DefaultOptions returns default build options.
func DefaultOptions() Options {
	return Options{
		Columns:        sheet.DefaultColumns(),
		Members:        sheet.DefaultMemberConfig(),
		MemberMode:     MembersAuto,
		Patch:          patch.DefaultConfig(),
		Whitelist:      replicate.DefaultWhitelist(),
		FallbackNumber: 1,
		KillWait:       5 * time.Second,
	}
}

// LoadOptions reads a YAML options file over the defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read options: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse options %s: %w", path, err)
	}
	return opts, nil
}

// ApplyEnv loads a .env file from the working directory, if any, and applies
// EXCLONE_* overrides.
func (o *Options) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if v := os.Getenv(EnvReportDir); v != "" {
		o.ReportDir = v
	}
	if v := os.Getenv(EnvHostProcess); v != "" {
		o.HostProcess = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := ParseTimeout(v)
		if err != nil {
			return err
		}
		o.Timeout = d
	}
	return nil
}

// ParseTimeout parses a positive duration ("90s", "15m").
func ParseTimeout(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadTimeout, s)
	}
	return d, nil
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
