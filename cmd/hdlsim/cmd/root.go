// Package cmd provides the command-line interface for hdlsim.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitFailure  = 1
	exitMismatch = 2
)

// An exitError ends the program with a given code.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

// exitCode returns the code the program exits with after err.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	return exitFailure
}

// env resolves HDLSIM_* settings from the process environment first and
// from the .env file second.
type env struct {
	file map[string]string
}

func (e *env) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}

	v, ok := e.file[key]

	return v, ok
}

// load reads the .env file at path. A missing file is not an error unless
// the path was given explicitly.
func (e *env) load(path string, explicit bool) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	e.file = values

	return nil
}

// applyDefaults sets every flag the user did not give from its environment
// variable.
func (e *env) applyDefaults(cmd *cobra.Command, vars map[string]string) error {
	for flag, key := range vars {
		if cmd.Flags().Changed(flag) {
			continue
		}

		v, ok := e.lookup(key)
		if !ok {
			continue
		}

		if err := cmd.Flags().Set(flag, v); err != nil {
			return fmt.Errorf("%s=%s: %w", key, v, err)
		}
	}

	return nil
}

func (e *env) enabled(key string) bool {
	v, ok := e.lookup(key)
	if !ok {
		return false
	}

	b, err := strconv.ParseBool(v)

	return err == nil && b
}

// newRootCmd creates the command tree.
func newRootCmd() *cobra.Command {
	e := &env{}

	rootCmd := &cobra.Command{
		Use:   "hdlsim",
		Short: "hdlsim simulates digital logic described as a YAML netlist.",
		Long: `hdlsim is an event-driven four-state logic simulator. It ` +
			`loads a netlist of standard parts, applies a vector file and ` +
			`checks the expected values. Flags default to HDLSIM_* ` +
			`environment variables, which may also be set in a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("env-file")
			return e.load(path, cmd.Flags().Changed("env-file"))
		},
	}

	rootCmd.PersistentFlags().String("env-file", ".env",
		"File with HDLSIM_* settings")

	rootCmd.AddCommand(newRunCmd(e))
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newPartsCmd())

	return rootCmd
}

// Execute runs the command line and exits with the code of the outcome.
func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		os.Exit(exitCode(err))
	}
}
