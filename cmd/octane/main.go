package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"octane-sdk/internal/config"
	"octane-sdk/internal/logging"
	"octane-sdk/octane"
)

func main() {
	configPath := flag.String("config", "./octane.yaml", "Path to YAML/JSON config")
	paramsJSON := flag.String("params", "", "Operation parameters as JSON ('-' reads stdin)")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	listOps := flag.Bool("list", false, "List available namespaces and operations, then exit")
	signOut := flag.Bool("sign-out", true, "Sign out after the operation completes")
	flag.Parse()

	logger := logging.New(*logFormat, *logLevel)

	if err := run(*configPath, *paramsJSON, *listOps, *signOut, flag.Args()); err != nil {
		logger.Error("octane", "error", err)
		os.Exit(1)
	}
}

func run(configPath, paramsJSON string, listOps, signOut bool, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.Username != "" && cfg.Auth.Password == "" {
		password, err := promptPassword(cfg.Auth.Username)
		if err != nil {
			return err
		}
		cfg.Auth.Password = password
	}

	client, err := octane.New(cfg)
	if err != nil {
		return err
	}

	if listOps {
		for _, ns := range client.Namespaces() {
			fmt.Printf("%s: %s\n", ns, strings.Join(client.Operations(ns), ", "))
		}
		return nil
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: octane [flags] <namespace> <operation>")
	}
	namespace, operation := args[0], args[1]

	params, err := readParams(paramsJSON)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := client.Authenticate(ctx); err != nil {
		return err
	}
	if signOut {
		defer client.SignOut(ctx)
	}

	result, err := client.Execute(ctx, namespace, operation, params)
	if err != nil {
		return err
	}
	return printResult(result)
}

func readParams(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	if raw == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read params from stdin: %w", err)
		}
		raw = string(data)
	}
	var params any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("parse params: %w", err)
	}
	return params, nil
}

func printResult(result *octane.Result) error {
	if result.Raw != nil {
		_, err := os.Stdout.Write(result.Raw)
		return err
	}
	out := map[string]any{"data": result.Data}
	if result.TotalCount != nil {
		out["total_count"] = *result.TotalCount
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func promptPassword(username string) (string, error) {
	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(password), nil
}
