package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/taskwire/taskwire/internal/auth"
	"github.com/taskwire/taskwire/internal/util/logredact"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize the CLI against the Taskwire API",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored credential",
	RunE:  runLogout,
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Inspect authentication state",
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored credential's state",
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authStatusCmd)

	loginCmd.Flags().Bool("manual", false, "Skip the browser and paste the authorization code")
	loginCmd.Flags().Bool("token", false, "Store a pre-issued access token instead of running OAuth")
}

func runLogin(cmd *cobra.Command, args []string) error {
	store := credentialStore()

	useToken, _ := cmd.Flags().GetBool("token")
	if useToken {
		token, err := auth.ReadAccessToken(os.Stdin, os.Stderr)
		if err != nil {
			return err
		}
		if _, err := store.Save(auth.Credential{AccessToken: token}); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Token stored.")
		return nil
	}

	manual, _ := cmd.Flags().GetBool("manual")
	cred, err := auth.Login(cmd.Context(), store, auth.LoginOptions{
		OAuth:  oauthConfig(),
		Manual: manual,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Logged in (token %s).\n", logredact.Token(cred.AccessToken))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	if err := credentialStore().Clear(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Logged out.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	if cfg.Auth.AccessToken != "" {
		fmt.Println("Using explicit access token from configuration.")
		return nil
	}

	cred, err := credentialStore().Load()
	if err != nil {
		return err
	}
	if cred == nil {
		fmt.Println("Not logged in. Run 'taskwire login'.")
		return nil
	}

	fmt.Printf("Credential:    %s\n", credentialStore().Path())
	fmt.Printf("Access token:  %s\n", logredact.Token(cred.AccessToken))
	fmt.Printf("Refresh token: %v\n", cred.RefreshToken != "")
	if cred.Scope != "" {
		fmt.Printf("Scope:         %s\n", cred.Scope)
	}
	switch {
	case cred.ExpiresAt == 0:
		fmt.Println("Expires:       never")
	case auth.IsExpired(cred, 0):
		fmt.Printf("Expires:       expired at %s\n", time.UnixMilli(cred.ExpiresAt).Format(time.RFC3339))
	default:
		fmt.Printf("Expires:       %s (in %s)\n",
			time.UnixMilli(cred.ExpiresAt).Format(time.RFC3339),
			time.Until(time.UnixMilli(cred.ExpiresAt)).Round(time.Second))
	}

	printJWTClaims(cred.AccessToken)
	return nil
}

// printJWTClaims shows the token's own claims when it happens to be a JWT.
// Display only; the signature is never verified client-side.
func printJWTClaims(token string) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		fmt.Printf("Subject:       %s\n", sub)
	}
	if iss, err := claims.GetIssuer(); err == nil && iss != "" {
		fmt.Printf("Issuer:        %s\n", iss)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		fmt.Printf("Token exp:     %s\n", exp.Format(time.RFC3339))
	}
}
