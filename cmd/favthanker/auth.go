package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"favthanker/pkg/auth"
	"favthanker/pkg/session"
	"favthanker/pkg/ui"
)

var loginWithCookies bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored sessions",
	Long: `Manage stored session cookies.

Cookies are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (FAVTHANKER_USERNAME, FAVTHANKER_COOKIE_A, FAVTHANKER_COOKIE_B)

Your password is never stored; only the a and b session cookies are.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in and store the session cookies",
	Long: `Log in with your password, answering the captcha when the site asks for one,
and store the resulting session cookies. With --cookies, paste the a and b cookie
values from a logged-in browser instead.`,
	Example: `  # Password login
  favthanker auth login myname

  # Reuse browser cookies
  favthanker auth login myname --cookies`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored cookies",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd)
	loginCmd.Flags().BoolVar(&loginWithCookies, "cookies", false, "enter browser cookies instead of a password")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := cfg.Account.Username
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		if name, err = readLine("Username: "); err != nil {
			return err
		}
	}
	if name == "" {
		return fmt.Errorf("username is required")
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	sessions := newSessionManager(cfg, client, manager)
	ctx := cmd.Context()

	if !sessions.VerifyOnline(ctx) {
		return fmt.Errorf("%s is not reachable", cfg.Site.BaseURL)
	}

	var s *session.Session
	if loginWithCookies {
		auth.WriteCookieGuide(os.Stdout, cfg.Site.BaseURL)
		a, err := readPassword("Cookie a: ")
		if err != nil {
			return err
		}
		b, err := readPassword("Cookie b: ")
		if err != nil {
			return err
		}
		if s, err = sessions.Resume(ctx, name, a, b); err != nil {
			return err
		}
	} else {
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		s, err = passwordLogin(ctx, sessions, name, password)
		if err != nil {
			return err
		}
	}

	ui.PrintSuccess("Logged in as " + s.Username())
	ui.PrintInfo("Session stored", "run 'favthanker run' to thank your fans")
	return nil
}

// passwordLogin logs in and walks the operator through a captcha when one is required
func passwordLogin(ctx context.Context, sessions *session.Manager, name, password string) (*session.Session, error) {
	res, err := sessions.Login(ctx, session.Credentials{Username: name, Password: password})
	if err != nil {
		return nil, err
	}
	if res.Session != nil {
		return res.Session, nil
	}
	answer, err := askCaptcha(res.Challenge)
	if err != nil {
		return nil, err
	}
	return sessions.CompleteLogin(ctx, res.Challenge, password, answer)
}

// askCaptcha saves the captcha image and reads the operator's answer
func askCaptcha(ch *session.Challenge) (string, error) {
	const file = "captcha.jpg"
	if err := os.WriteFile(file, ch.Image, 0600); err != nil {
		return "", fmt.Errorf("failed to save captcha: %w", err)
	}
	defer os.Remove(file)

	ui.PrintWarning("The site wants a captcha; the image was saved to " + file)
	return readLine("Captcha: ")
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := cfg.Account.Username
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		account, err := storedAccount(manager, "")
		if err != nil {
			return err
		}
		if account == nil {
			ui.PrintWarning("No stored accounts found")
			return nil
		}
		if !confirm(fmt.Sprintf("Remove account '%s'? (y/N): ", account.Username)) {
			return nil
		}
		name = account.Username
	}

	if err := manager.Delete(name); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}
	ui.PrintSuccess("Account removed: " + name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'favthanker auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Username: %s\n", i+1, sanitized.Username)
		fmt.Printf("   Cookie a: %s\n", sanitized.CookieA)
		fmt.Printf("   Cookie b: %s\n", sanitized.CookieB)
		fmt.Printf("   Cookie pair issued: %s (rotated %d times)\n", sanitized.RotatedAt.Format(time.DateTime), sanitized.Rotations)
		fmt.Printf("   Last Modified: %s\n\n", sanitized.LastModified.Format(time.DateTime))
	}
	return nil
}
