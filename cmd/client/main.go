// Package main is the feynmind study client: an interactive shell plus a few
// one-shot account commands.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atinyakov/feynmind/internal/client/auth"
	"github.com/atinyakov/feynmind/internal/client/config"
	"github.com/atinyakov/feynmind/internal/client/shell"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	if err := rootCmd(config.Load()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(opts *config.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "feynmind",
		Short:         "Study a document by explaining it back",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), opts)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.BaseURL, "url", opts.BaseURL, "backend API base URL")
	f.StringVar(&opts.StatePath, "state", opts.StatePath, "credential file")
	f.StringVar(&opts.CAFile, "ca", opts.CAFile, "PEM bundle trusted for the backend's TLS certificate")
	f.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "per-request timeout (0 means none)")
	f.StringVar(&opts.TTSCommand, "tts", opts.TTSCommand, `speech synthesis command, e.g. "espeak -s {rate}"`)
	f.StringVar(&opts.STTCommand, "stt", opts.STTCommand, "speech recognition command printing one transcript")
	f.StringVar(&opts.LogFile, "log-file", opts.LogFile, "log file")
	f.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "log level (debug, info, warn, error)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "shell",
			Short: "Start the interactive study shell (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runShell(cmd.Context(), opts)
			},
		},
		loginCmd(opts),
		signupCmd(opts),
		&cobra.Command{
			Use:   "logout",
			Short: "Forget the stored session",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(opts, nil)
				if err != nil {
					return err
				}
				defer a.Close()
				if _, err := a.auth.Restore(); err != nil {
					return err
				}
				if err := a.auth.Logout(); err != nil {
					return err
				}
				fmt.Println("Logged out")
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("Feynmind Client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
			},
		},
	)
	return cmd
}

func loginCmd(opts *config.Options) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd.Context(), opts, auth.LoginMode, auth.Fields{Email: email, Password: password})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func signupCmd(opts *config.Options) *cobra.Command {
	var f auth.Fields
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd.Context(), opts, auth.SignupMode, f)
		},
	}
	cmd.Flags().StringVar(&f.Name, "name", "", "display name")
	cmd.Flags().StringVar(&f.Email, "email", "", "account email")
	cmd.Flags().StringVar(&f.Password, "password", "", "account password (at least 6 characters)")
	for _, name := range []string{"name", "email", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func submit(ctx context.Context, opts *config.Options, mode auth.Mode, f auth.Fields) error {
	a, err := newApp(opts, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	a.auth.SetMode(mode)
	if err := a.auth.Submit(ctx, f); err != nil {
		return errors.New(a.auth.Form().Message)
	}
	if form := a.auth.Form(); form.Info {
		fmt.Println(form.Message)
		return nil
	}
	fmt.Printf("Logged in as %s\n", a.session.State().User.Name)
	return nil
}

func runShell(ctx context.Context, opts *config.Options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	sh := shell.New(os.Stdin, os.Stdout, nil, nil, nil)
	a, err := newApp(opts, sh.Render)
	if err != nil {
		return err
	}
	defer a.Close()
	sh.Attach(a.auth, a.session, a.log.Named("shell"))

	a.log.Info("shell started", zap.String("url", opts.BaseURL),
		zap.Bool("voice_in", a.session.VoiceInputAvailable()),
		zap.Bool("voice_out", a.session.VoiceOutputAvailable()))
	fmt.Println("Feynmind. Type 'help' for a list of commands.")
	sh.Run(ctx)
	return nil
}
