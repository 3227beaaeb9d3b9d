package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"taskdeck/internal/api"
	"taskdeck/internal/config"
	"taskdeck/internal/store"
	"taskdeck/internal/ui"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigFileName, "Path to the config file")
	serverURL := flag.String("server", "", "Backend base URL (overrides config)")
	forceLogin := flag.Bool("login", false, "Discard the stored session and sign in again")
	flag.Parse()

	cfg, err := config.LoadOrCreate(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *serverURL != "" {
		cfg.BaseURL = *serverURL
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open local store: %v", err)
	}
	defer st.Close()

	client := api.New(cfg.BaseURL, time.Duration(cfg.TimeoutSeconds)*time.Second)

	access, refresh, err := st.LoadSession()
	if err != nil {
		log.Fatalf("failed to load session: %v", err)
	}
	if *forceLogin {
		access, refresh = "", ""
	}

	if access == "" && refresh == "" {
		if err := signIn(client, st); err != nil {
			log.Fatalf("sign-in failed: %v", err)
		}
	} else {
		client.SetTokens(access, refresh)
	}

	if err := ui.Run(client, st, cfg); err != nil {
		log.Fatalf("error running program: %v", err)
	}

	// Tokens may have rotated during the session.
	access, refresh = client.Tokens()
	if err := st.SaveSession(access, refresh); err != nil {
		log.Printf("failed to persist session: %v", err)
	}
}

func signIn(client *api.Client, st *store.Store) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Email: ")
	email, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	fmt.Print("Password: ")
	password, err := reader.ReadString('\n')
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), api.DefaultTimeout)
	defer cancel()
	user, err := client.SignIn(ctx, strings.TrimSpace(email), strings.TrimSpace(password))
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", user.Username)

	access, refresh := client.Tokens()
	return st.SaveSession(access, refresh)
}
