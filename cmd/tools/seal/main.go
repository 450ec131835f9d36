// Package main seals a portal password with SEALING_KEY so it can be stored
// in portal_settings.password_sealed.
//
// The plaintext is read from stdin (one line, trailing newline stripped) so
// it never appears in shell history. With -store the sealed value is written
// to the database instead of printed.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"planswitch/internal/config"
	"planswitch/internal/db"
	"planswitch/internal/security"
	"planswitch/internal/types"
)

func main() {
	store := flag.Bool("store", false, "Write the sealed password to portal_settings (needs DATABASE_URL)")
	open := flag.Bool("open", false, "Reverse the operation: read a sealed value and print the plaintext")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: seal [flags] < password.txt\n\n")
		fmt.Fprintf(os.Stderr, "Seal a portal password with SEALING_KEY.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "error", err)
	}
	if err := config.ResolveSecrets(config.SecretProviderFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), os.Stdin, os.Stdout, *store, *open, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", types.Message(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, in io.Reader, out io.Writer, store, open bool, logger *slog.Logger) error {
	if store && open {
		return errors.New("-store and -open are mutually exclusive")
	}

	sealer, err := security.NewSealer(types.SecretString(os.Getenv("SEALING_KEY")))
	if err != nil {
		return err
	}

	input, err := readLine(in)
	if err != nil {
		return err
	}

	if open {
		plain, err := sealer.Open(input)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, plain.Unmask())
		return err
	}

	sealed, err := sealer.Seal(types.SecretString(input))
	if err != nil {
		return err
	}
	if !store {
		_, err = fmt.Fprintln(out, sealed)
		return err
	}

	pool, err := db.OpenPool(ctx, config.DatabaseConfig{URL: types.SecretString(os.Getenv("DATABASE_URL"))})
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.NewSettingsRepository(pool, sealer).UpdateSealedPassword(ctx, sealed); err != nil {
		return err
	}
	logger.Info("sealed portal password stored")
	return nil
}

// readLine returns the first line of r without its line terminator.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading input: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no input on stdin")
	}
	return line, nil
}
