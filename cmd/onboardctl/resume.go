package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crewhire/onboarding-backend/internal/wizard"
	"github.com/crewhire/onboarding-backend/pkg/client"
	"github.com/spf13/cobra"
)

var resumeFlags struct {
	api       string
	callback  string
	stateFile string
	timeout   time.Duration
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a suspended wizard session from a DigiLocker callback URL",
	Long: `Resume a suspended wizard session from a DigiLocker callback URL.

The callback URL is the one the vendor redirected the candidate to after
e-Sign. The server decides whether Aadhaar was verified; the status in the
URL is only informational. The local suspend marker written when the e-Sign
began is read from --state-file and cleared on success.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !wizard.IsCallbackURL(resumeFlags.callback) {
			return fmt.Errorf("%q is not a DigiLocker callback URL", resumeFlags.callback)
		}

		api := client.New(client.Config{BaseURL: resumeFlags.api, Timeout: resumeFlags.timeout})
		ctrl := wizard.New(wizard.Deps{
			Drafts:   api,
			Uploads:  api,
			Verifier: api,
			Suspend:  wizard.NewFileSuspendStore(resumeFlags.stateFile),
		})

		resp, err := ctrl.Resume(cmd.Context(), resumeFlags.callback)
		if err != nil {
			return fmt.Errorf("resume failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "phone: %s\n", ctrl.Phone())
		if id := ctrl.ApplicationID(); id != nil {
			fmt.Fprintf(out, "application: %s\n", id)
		}
		fmt.Fprintf(out, "step: %d\n", ctrl.Step())
		fmt.Fprintf(out, "aadhaar_verified: %t\n", ctrl.Flags().AadhaarVerified)
		if resp.Status != "" {
			fmt.Fprintf(out, "esign_status: %s\n", resp.Status)
		}
		return nil
	},
}

func init() {
	home, _ := os.UserHomeDir()

	resumeCmd.Flags().StringVar(&resumeFlags.api, "api", "http://localhost:8080/api/v1", "onboarding API base URL")
	resumeCmd.Flags().StringVar(&resumeFlags.callback, "callback", "", "callback URL the vendor redirected to")
	resumeCmd.Flags().StringVar(&resumeFlags.stateFile, "state-file", filepath.Join(home, ".onboardctl", "esign.json"), "suspend marker location")
	resumeCmd.Flags().DurationVar(&resumeFlags.timeout, "timeout", 30*time.Second, "HTTP timeout")
	_ = resumeCmd.MarkFlagRequired("callback")
}
