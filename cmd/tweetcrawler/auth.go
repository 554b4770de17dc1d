package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"tweetcrawler/pkg/auth"
	"tweetcrawler/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage search API credentials",
	Long: `Manage stored search API credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

A YAML key file given with --keys is read directly and never modified here.
Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Store search API credentials securely",
	Long: `Store a bearer token, or a consumer key and secret, under an account name.

You will be prompted for:
  - Account name (if not provided)
  - Bearer token, or consumer key and consumer secret
  - Endpoint (optional, press Enter for the full-archive search endpoint)`,
	Example: `  # Interactive login
  tweetcrawler auth login

  # Store credentials under a name
  tweetcrawler auth login research`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <account>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with masked credential values.`,
	RunE:  runList,
}

// guideCmd represents the auth guide command
var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain how to obtain API credentials",
	Run: func(cmd *cobra.Command, args []string) {
		auth.WriteCredentialGuide(ui.Output())
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(guideCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	out := ui.Output()
	reader := bufio.NewReader(os.Stdin)

	var name string
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}
	if name == "" {
		fmt.Fprint(out, "Account name: ")
		name = readLine(reader)
	}
	if name == "" {
		return fmt.Errorf("account name is required")
	}

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Fprintf(out, "\nAccount '%s' already exists. Update credentials? (y/N): ", name)
		if !strings.HasPrefix(strings.ToLower(readLine(reader)), "y") {
			return nil
		}
	}

	creds := &auth.Credentials{Name: name}

	fmt.Fprintln(out, "\nEnter your credentials (they will be hidden as you type).")
	fmt.Fprintln(out, "Leave the bearer token empty to use a consumer key and secret instead.")
	fmt.Fprintln(out)

	fmt.Fprint(out, "Bearer token: ")
	if creds.BearerToken, err = readSecret(reader); err != nil {
		return fmt.Errorf("failed to read bearer token: %w", err)
	}
	if creds.BearerToken == "" {
		fmt.Fprint(out, "Consumer key: ")
		if creds.ConsumerKey, err = readSecret(reader); err != nil {
			return fmt.Errorf("failed to read consumer key: %w", err)
		}
		fmt.Fprint(out, "Consumer secret: ")
		if creds.ConsumerSecret, err = readSecret(reader); err != nil {
			return fmt.Errorf("failed to read consumer secret: %w", err)
		}
	}

	fmt.Fprint(out, "Endpoint (press Enter for default): ")
	creds.Endpoint = readLine(reader)

	if err := creds.Validate(); err != nil {
		return err
	}

	masked := auth.Sanitize(creds)
	fmt.Fprintln(out, "\nSummary:")
	fmt.Fprintf(out, "   Account: %s\n", masked.Name)
	if masked.BearerToken != "" {
		fmt.Fprintf(out, "   Bearer token: %s\n", masked.BearerToken)
	} else {
		fmt.Fprintf(out, "   Consumer key: %s\n", masked.ConsumerKey)
	}
	if masked.Endpoint != "" {
		fmt.Fprintf(out, "   Endpoint: %s\n", masked.Endpoint)
	}

	if err := manager.Store(creds); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", name))
	fmt.Fprintln(out, "\nUse it with:")
	fmt.Fprintf(out, "   $ tweetcrawler crawl -s 2021-01-01 -e 2021-01-08 --account %s\n", name)
	fmt.Fprintln(out, "\nNever share your credentials or config files!")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}
	ui.PrintSuccess("Account removed: " + args[0])
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
		ui.PrintInfo("No stored accounts", "Use 'tweetcrawler auth login' to add an account")
		return nil
	}

	out := ui.Output()
	ui.PrintHighlight("Stored Accounts")
	fmt.Fprintln(out)

	for i, account := range accounts {
		sanitized := auth.Sanitize(account)
		fmt.Fprintf(out, "%d. Account: %s\n", i+1, sanitized.Name)
		if sanitized.BearerToken != "" {
			fmt.Fprintf(out, "   Bearer token: %s\n", sanitized.BearerToken)
		}
		if sanitized.ConsumerKey != "" {
			fmt.Fprintf(out, "   Consumer key: %s\n", sanitized.ConsumerKey)
		}
		if sanitized.Endpoint != "" {
			fmt.Fprintf(out, "   Endpoint: %s\n", sanitized.Endpoint)
		}
		if !sanitized.LastModified.IsZero() {
			fmt.Fprintf(out, "   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func readLine(r *bufio.Reader) string {
	input, _ := r.ReadString('\n')
	return strings.TrimSpace(input)
}

// readSecret reads a value from stdin without echoing when stdin is a terminal
func readSecret(r *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(ui.Output())
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := r.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
