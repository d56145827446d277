package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"kelasin/chat/pkg/chatclient"
)

func (a *app) loginCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(os.Stdin)

			if email == "" {
				email = a.cfg.Email
			}
			if email == "" {
				fmt.Print("Email: ")
				line, err := reader.ReadString('\n')
				if err != nil {
					return err
				}
				email = strings.TrimSpace(line)
			}

			password, err := readPassword(reader)
			if err != nil {
				return err
			}

			api := chatclient.NewAPI(a.cfg.Server, "")
			user, err := api.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}

			a.cfg.Email = user.Email
			a.cfg.Token = api.Token
			if err := SaveConfig(a.cfg, a.configPath); err != nil {
				return err
			}
			fmt.Printf("Logged in as %s (%s)\n", user.Name, strings.ToLower(string(user.Role)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.Token = ""
			return SaveConfig(a.cfg, a.configPath)
		},
	}
}

// readPassword reads without echo on a terminal, or a plain line otherwise.
func readPassword(reader *bufio.Reader) (string, error) {
	fmt.Print("Password: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
