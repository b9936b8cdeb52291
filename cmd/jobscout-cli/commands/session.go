package commands

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"jobscout-backend/lib/browser"
	"jobscout-backend/lib/serviceutil"
)

func init() {
	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionStatusCmd)
	sessionCmd.AddCommand(sessionConfirmCmd)
	rootCmd.AddCommand(sessionCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manages the logged-in browser session.",
}

const authPollInterval = time.Second * 5

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Opens a browser window, waits for login and persists the session.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		// login needs a visible window regardless of config
		cfg.Headless = false

		service, cleanup := openService(cfg)
		defer cleanup()

		ctx := serviceutil.SignalContext()
		err := service.StartSession(ctx)

		var blocked *browser.BlockedError
		if errors.As(err, &blocked) {
			fmt.Println("The site presented a challenge page. Solve it in the browser window, then press Enter.")
			waitForEnter()
			confirmErr := service.ConfirmChallenge()
			if confirmErr != nil {
				serviceutil.Fatal("failed to resume after challenge", confirmErr)
			}
			err = nil
		}
		if err != nil {
			serviceutil.Fatal("failed to start session", err)
		}

		if service.SessionPhase() == browser.PhaseActive {
			slog.Info("session restored from saved profile", "profile", cfg.Profile)
			return
		}

		fmt.Println("Log in using the browser window. Waiting for the session to become active...")
		for {
			select {
			case <-ctx.Done():
				slog.Warn("interrupted before login completed")
				return
			case <-time.After(authPollInterval):
			}

			status, err := service.CheckAuth(ctx)
			if err != nil {
				var blocked *browser.BlockedError
				if errors.As(err, &blocked) {
					fmt.Println("Challenge page detected. Solve it in the browser window, then press Enter.")
					waitForEnter()
					confirmErr := service.ConfirmChallenge()
					if confirmErr != nil {
						serviceutil.Fatal("failed to resume after challenge", confirmErr)
					}
					continue
				}
				serviceutil.Fatal("failed to check login state", err)
			}
			if status == browser.AuthActive {
				slog.Info("session active, profile saved", "profile", cfg.Profile)
				return
			}
		}
	},
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Checks whether the persisted session is still logged in.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		cfg.Headless = true

		service, cleanup := openService(cfg)
		defer cleanup()

		ctx := serviceutil.SignalContext()
		err := service.StartSession(ctx)
		if err != nil {
			var blocked *browser.BlockedError
			if errors.As(err, &blocked) {
				fmt.Printf("phase: %s (challenge: %s)\n", service.SessionPhase(), blocked.Challenge)
				return
			}
			serviceutil.Fatal("failed to probe session", err)
		}

		phase := service.SessionPhase()
		fmt.Printf("phase: %s\n", phase)
		if phase == browser.PhaseActive {
			fmt.Println("logged in: yes")
		} else {
			fmt.Println("logged in: no, run `jobscout-cli session start`")
		}
	},
}

var sessionConfirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Opens a browser window to solve a pending challenge, then re-checks login.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		cfg.Headless = false

		service, cleanup := openService(cfg)
		defer cleanup()

		ctx := serviceutil.SignalContext()
		err := service.StartSession(ctx)

		var blocked *browser.BlockedError
		if err != nil && !errors.As(err, &blocked) {
			serviceutil.Fatal("failed to start session", err)
		}
		if blocked == nil {
			fmt.Printf("no challenge pending, phase: %s\n", service.SessionPhase())
			return
		}

		fmt.Println("Solve the challenge in the browser window, then press Enter.")
		waitForEnter()
		err = service.ConfirmChallenge()
		if err != nil {
			serviceutil.Fatal("failed to resume after challenge", err)
		}
		status, err := service.CheckAuth(ctx)
		if err != nil {
			serviceutil.Fatal("failed to check login state", err)
		}
		fmt.Printf("phase: %s, auth: %s\n", service.SessionPhase(), status)
	},
}

func waitForEnter() {
	reader := bufio.NewReader(os.Stdin)
	_, _ = reader.ReadString('\n')
}
