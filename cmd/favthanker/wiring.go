package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"favthanker/pkg/auth"
	"favthanker/pkg/config"
	"favthanker/pkg/logger"
	"favthanker/pkg/session"
	"favthanker/pkg/web"
)

var stdin = bufio.NewReader(os.Stdin)

func newClient(c *config.Config) (*web.Client, error) {
	return web.NewClient(web.Options{
		BaseURL:           c.Site.BaseURL,
		UserAgent:         c.Site.UserAgent,
		Timeout:           c.Site.Timeout,
		RequestsPerSecond: c.Site.RequestsPerSecond,
		Logger:            logger.GetLogger(),
	})
}

func newSessionManager(c *config.Config, client *web.Client, store session.AccountStore) *session.Manager {
	return session.NewManager(client, store,
		session.WithProbe(c.Site.ProbeAttempts, c.Pacing.RequestDelay),
		session.WithLogger(logger.GetLogger()),
	)
}

// storedAccount returns the configured account, or the most recently stored
// one when no username was given. A missing account is not an error.
func storedAccount(mgr *auth.Manager, name string) (*auth.Account, error) {
	var (
		account *auth.Account
		err     error
	)
	if name != "" {
		account, err = mgr.Retrieve(name)
	} else {
		account, err = mgr.RetrieveDefault()
	}
	if errors.Is(err, auth.ErrCredentialsNotFound) {
		return nil, nil
	}
	return account, err
}

// loadProfile reads the message profile for user
func loadProfile(c *config.Config, user string) (*config.Profile, error) {
	path := c.ProfilePath()
	if path == "" {
		path = strings.ToLower(user) + ".json"
	}
	p, err := config.LoadProfile(path)
	if err != nil {
		return nil, fmt.Errorf("%w (create one with 'favthanker config init --profile')", err)
	}
	return p, nil
}

func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	input, err := stdin.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// readPassword reads a secret from stdin without echoing
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}
	input, err := stdin.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func confirm(prompt string) bool {
	answer, _ := readLine(prompt)
	return strings.HasPrefix(strings.ToLower(answer), "y")
}
