package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	apiclient "github.com/james-spears/refactored-computing-machine/pkg/api/client"
)

const defaultAPIBase = "http://localhost:4000"

type cliConfig struct {
	APIBaseURL   string `json:"api_base_url"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "register":
		err = commandCredentials("register", args)
	case "login":
		err = commandCredentials("login", args)
	case "refresh":
		err = commandRefresh()
	case "profile":
		err = commandProfile()
	case "passwd":
		err = commandPasswd()
	case "logout":
		err = commandLogout()
	case "list":
		err = commandList(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	var apiErr apiclient.APIError
	if errors.As(err, &apiErr) {
		for _, detail := range apiErr.Details {
			fmt.Fprintf(os.Stderr, "  - %s\n", detail)
		}
	}
}

func commandCredentials(name string, args []string) error {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+defaultAPIBase+")")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := promptSecret("Password: ", *password)
	if err != nil {
		return err
	}

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var resp apiclient.AuthResponse
	if name == "register" {
		resp, err = client.Register(ctx, *email, secret)
	} else {
		resp, err = client.Login(ctx, *email, secret)
	}
	if err != nil {
		return err
	}
	cfg.AccessToken = resp.Tokens.AccessToken
	cfg.RefreshToken = resp.Tokens.RefreshToken
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("%s successful (%s)\n", name, resp.User.Email)
	return nil
}

func commandRefresh() error {
	cfg, client, err := session()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.RefreshToken) == "" {
		return errors.New("no refresh token stored; run 'relgate login'")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	pair, err := client.Refresh(ctx, cfg.RefreshToken)
	if err != nil {
		return err
	}
	cfg.AccessToken = pair.AccessToken
	cfg.RefreshToken = pair.RefreshToken
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("tokens refreshed (access valid for %ds)\n", pair.ExpiresIn)
	return nil
}

func commandProfile() error {
	cfg, client, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	user, err := client.Profile(ctx, cfg.AccessToken)
	if err != nil {
		return err
	}
	fmt.Printf("ID:      %s\nEmail:   %s\nCreated: %s\n", user.ID, user.Email, user.CreatedAt.Format(time.RFC3339))
	return nil
}

func commandPasswd() error {
	cfg, client, err := session()
	if err != nil {
		return err
	}
	current, err := promptSecret("Current password: ", "")
	if err != nil {
		return err
	}
	next, err := promptSecret("New password: ", "")
	if err != nil {
		return err
	}
	confirm, err := promptSecret("Confirm new password: ", "")
	if err != nil {
		return err
	}
	if next != confirm {
		return errors.New("passwords do not match")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := client.ChangePassword(ctx, cfg.AccessToken, current, next); err != nil {
		return err
	}
	fmt.Println("password changed")
	return nil
}

func commandLogout() error {
	cfg, client, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := client.Logout(ctx, cfg.AccessToken); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	cfg.AccessToken = ""
	cfg.RefreshToken = ""
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func commandList(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: relgate list <kind>")
	}
	cfg, client, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	items, err := client.ListCatalog(ctx, cfg.AccessToken, args[0])
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Printf("no %s found\n", args[0])
		return nil
	}
	out, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func session() (cliConfig, *apiclient.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cliConfig{}, nil, err
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return cliConfig{}, nil, errors.New("please login first using 'relgate login'")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return cliConfig{}, nil, err
	}
	return cfg, client, nil
}

func promptSecret(label, supplied string) (string, error) {
	if secret := strings.TrimSpace(supplied); secret != "" {
		return secret, nil
	}
	fmt.Print(label)
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{APIBaseURL: defaultAPIBase}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBase}, nil
		}
		return cliConfig{APIBaseURL: defaultAPIBase}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{APIBaseURL: defaultAPIBase}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBase
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	if override := strings.TrimSpace(os.Getenv("RELGATE_CONFIG")); override != "" {
		return override, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "relgate", "config.json"), nil
}

func printUsage() {
	fmt.Printf("relgate CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	relgate register --email user@example.com [--password secret] [--api http://localhost:4000]
	relgate login --email user@example.com [--password secret] [--api http://localhost:4000]
	relgate refresh
	relgate profile
	relgate passwd
	relgate logout
	relgate list <teams|permissions|assets|artifacts|projects|releases|gates|criteria>
	relgate version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
