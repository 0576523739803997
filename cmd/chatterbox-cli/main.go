package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"chatterbox/internal/client"
	"chatterbox/internal/database"
	dbconfig "chatterbox/pkg/database"
)

const usage = `usage: chatterbox-cli <command> [flags]

commands:
  register  create an account
  login     print a session token
  chat      join the chat room
  dump      print every stored message`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	command, args := args[0], args[1:]
	flags := flag.NewFlagSet(command, flag.ContinueOnError)
	flags.SetOutput(out)
	server := flags.String("server", envOr("CHATTERBOX_SERVER", "http://127.0.0.1:8000"), "server base URL")
	username := flags.String("username", "", "account name")
	password := flags.String("password", "", "account password")
	token := flags.String("token", "", "session token (chat logs in with -username/-password when empty)")
	dbPath := flags.String("db", envOr("CHATTERBOX_DATABASE_PATH", "./chat.db"), "database file (dump only)")

	if err := flags.Parse(args); err != nil {
		return err
	}

	switch command {
	case "register":
		c, err := client.New(*server)
		if err != nil {
			return err
		}
		if err := c.Register(ctx, *username, *password); err != nil {
			return err
		}
		fmt.Fprintln(out, "User registered successfully")
		return nil

	case "login":
		c, err := client.New(*server)
		if err != nil {
			return err
		}
		t, err := c.Login(ctx, *username, *password)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, t)
		return nil

	case "chat":
		c, err := client.New(*server)
		if err != nil {
			return err
		}
		t := *token
		if t == "" {
			if t, err = c.Login(ctx, *username, *password); err != nil {
				return err
			}
		}
		fmt.Fprintln(out, "Connected to chat server")
		return c.Chat(ctx, t, in, out)

	case "dump":
		return dump(ctx, *dbPath, out)

	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

// dump prints every stored message, oldest first
func dump(ctx context.Context, path string, out io.Writer) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}

	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = path
	manager, err := database.NewManager(cfg, nil)
	if err != nil {
		return err
	}
	defer manager.Close()

	total, err := manager.CountMessages(ctx)
	if err != nil {
		return err
	}
	messages, err := manager.Recent(ctx, total)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "MESSAGES IN DB:")
	for _, msg := range messages {
		fmt.Fprintln(out, client.FormatMessage(msg))
	}
	return nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
