// Package main is a developer CLI that performs one plan change from flags,
// bypassing the database, the scheduler and the API.
//
// Usage:
//
//	run-once -plan "Home Fast" -base-url https://portal.example.net -username jo \
//	    -user-id 1 -service-id 2 -access-circuit-id 3 -location-id 4
//
// The password is read from the variable named by -password-env (default
// PORTAL_PASSWORD), which may come from a .env file. The RunResult is printed
// as JSON; the exit status is 1 when the run failed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"planswitch/internal/automation"
	"planswitch/internal/plans"
	"planswitch/internal/types"
)

type options struct {
	plan        string
	planCode    string
	baseURL     string
	username    string
	passwordEnv string
	ids         types.PortalIDs

	discountCode  string
	scheduledDate string
	paymentOption string
	timeout       time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.plan, "plan", "", "Plan name from the catalog (e.g. \"Home Fast\")")
	flag.StringVar(&opts.planCode, "plan-code", "", "Numeric portal plan code; wins over -plan")
	flag.StringVar(&opts.baseURL, "base-url", "", "Portal base address (default $PORTAL_BASE_URL)")
	flag.StringVar(&opts.username, "username", "", "Portal username (default $PORTAL_USERNAME)")
	flag.StringVar(&opts.passwordEnv, "password-env", "PORTAL_PASSWORD", "Environment variable holding the portal password")
	flag.StringVar(&opts.ids.UserID, "user-id", "", "Portal user id")
	flag.StringVar(&opts.ids.ServiceID, "service-id", "", "Portal service id")
	flag.StringVar(&opts.ids.AccessCircuitID, "access-circuit-id", "", "Portal access circuit id")
	flag.StringVar(&opts.ids.LocationID, "location-id", "", "Portal location id")
	flag.StringVar(&opts.discountCode, "discount-code", "", "Optional discount code")
	flag.StringVar(&opts.scheduledDate, "scheduled-date", "", "Optional scheduled date, forwarded verbatim")
	flag.StringVar(&opts.paymentOption, "payment-option", "", "Optional payment option, forwarded verbatim")
	flag.DurationVar(&opts.timeout, "timeout", automation.DefaultRequestTimeout, "Per-request timeout")
	listFlag := flag.Bool("list", false, "List the plan catalog and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: run-once [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Perform a single plan change against the portal.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *listFlag {
		printCatalog(os.Stdout)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "error", err)
	}

	cfg, err := buildRunConfig(opts, os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n\n", types.Message(err))
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine := automation.NewEngine(automation.EngineConfig{Logger: logger, DefaultTimeout: opts.timeout})
	result := engine.Run(ctx, cfg)

	sink := automation.NewLoggingSink(logger)
	_ = sink.Append(ctx, result, types.LabelCLI)

	if err := printResult(os.Stdout, result); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if !result.Success {
		os.Exit(1)
	}
}

// buildRunConfig resolves the plan selector and fills unset fields from the
// environment. The returned config is validated.
func buildRunConfig(opts options, getenv func(string) string) (types.RunConfig, error) {
	code := opts.planCode
	if code == "" {
		if opts.plan == "" {
			return types.RunConfig{}, types.NewAppError(types.ErrCodeValidationMissingField,
				"one of -plan or -plan-code is required", nil)
		}
		entry, err := plans.Lookup(opts.plan)
		if err != nil {
			return types.RunConfig{}, err
		}
		code = entry.CodeString()
	}

	cfg := types.RunConfig{
		BaseURL:        firstNonEmpty(opts.baseURL, getenv("PORTAL_BASE_URL")),
		Username:       firstNonEmpty(opts.username, getenv("PORTAL_USERNAME")),
		Password:       types.SecretString(getenv(opts.passwordEnv)),
		IDs:            opts.ids,
		DiscountCode:   opts.discountCode,
		ScheduledDate:  opts.scheduledDate,
		PaymentOption:  opts.paymentOption,
		RequestTimeout: opts.timeout,
		TargetPlanCode: code,
	}
	if err := cfg.Validate(); err != nil {
		return types.RunConfig{}, err
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func printResult(w io.Writer, result types.RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func printCatalog(w io.Writer) {
	fmt.Fprintf(w, "%-20s %s\n", "PLAN", "CODE")
	for _, e := range plans.List() {
		fmt.Fprintf(w, "%-20s %d\n", e.Name, e.Code)
	}
}
