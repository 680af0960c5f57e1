// Small CLI for exercising a locally running EquitoVote API: list and create
// proposals, cast votes, request faucet tokens and watch cross-chain
// operations progress.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type commandFlags struct {
	apiAddr string
	action  string

	chainID       uint64
	proposalID    string
	title         string
	description   string
	tokenName     string
	durationHours uint64
	amount        string
	option        string
	message       string
	destChainID   uint64
	page          uint64
	pageSize      uint64
	waitWindow    time.Duration
}

func main() {
	flags := parseFlags()

	if err := run(flags); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() commandFlags {
	var flags commandFlags
	flag.StringVar(&flags.apiAddr, "api-addr", "http://127.0.0.1:8081", "EquitoVote HTTP API endpoint")
	flag.StringVar(&flags.action, "action", "", "Action to perform: list|get|create|vote|faucet|ping|chains")

	flag.Uint64Var(&flags.chainID, "chain-id", 0, "Source chain id")
	flag.StringVar(&flags.proposalID, "proposal-id", "", "Proposal id (0x-prefixed 32-byte hash)")
	flag.StringVar(&flags.title, "title", "", "Proposal title (for create)")
	flag.StringVar(&flags.description, "description", "", "Proposal description (for create)")
	flag.StringVar(&flags.tokenName, "token", "", "Governance token name")
	flag.Uint64Var(&flags.durationHours, "duration-hours", 24, "Voting period length in hours (for create)")
	flag.StringVar(&flags.amount, "amount", "", "Vote amount in whole tokens (for vote)")
	flag.StringVar(&flags.option, "vote", "", "Vote option: yes|no|abstain")
	flag.StringVar(&flags.message, "message", "ping", "Ping message")
	flag.Uint64Var(&flags.destChainID, "dest-chain-id", 0, "Destination chain id (for ping)")
	flag.Uint64Var(&flags.page, "page", 0, "Page number (for list)")
	flag.Uint64Var(&flags.pageSize, "page-size", 10, "Page size (for list)")
	flag.DurationVar(&flags.waitWindow, "wait", 2*time.Minute, "How long to poll an accepted operation")

	flag.Parse()

	if flags.action == "" {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nmissing required flag: -action")
		os.Exit(2)
	}

	return flags
}

func run(cfg commandFlags) error {
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).Level(zerolog.InfoLevel).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.waitWindow+30*time.Second)
	defer cancel()

	client := &apiClient{
		baseURL: strings.TrimRight(cfg.apiAddr, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}

	switch cfg.action {
	case "chains":
		return client.getJSON(ctx, "/api/v1/chains", printJSON)
	case "list":
		path := fmt.Sprintf("/api/v1/proposals?page=%d&page_size=%d", cfg.page, cfg.pageSize)
		return client.getJSON(ctx, path, printJSON)
	case "get":
		if cfg.proposalID == "" {
			return errors.New("get requires -proposal-id")
		}
		return client.getJSON(ctx, "/api/v1/proposals/"+cfg.proposalID, printJSON)
	case "create":
		return createProposal(ctx, client, cfg, logger)
	case "vote":
		return castVote(ctx, client, cfg, logger)
	case "faucet":
		if cfg.chainID == 0 || cfg.tokenName == "" {
			return errors.New("faucet requires -chain-id and -token")
		}
		body := map[string]any{"chain_id": cfg.chainID, "token_name": cfg.tokenName}
		return client.postJSON(ctx, "/api/v1/faucet", body, printJSON)
	case "ping":
		if cfg.chainID == 0 || cfg.destChainID == 0 {
			return errors.New("ping requires -chain-id and -dest-chain-id")
		}
		body := map[string]any{
			"source_chain_id":      cfg.chainID,
			"destination_chain_id": cfg.destChainID,
			"message":              cfg.message,
		}
		if err := client.postJSON(ctx, "/api/v1/ping", body, printJSON); err != nil {
			return err
		}
		return watchPingPong(ctx, client, cfg.waitWindow, logger)
	default:
		return fmt.Errorf("unsupported action %q", cfg.action)
	}
}

func createProposal(ctx context.Context, client *apiClient, cfg commandFlags, logger zerolog.Logger) error {
	if cfg.chainID == 0 || cfg.title == "" || cfg.tokenName == "" {
		return errors.New("create requires -chain-id, -title and -token")
	}
	body := map[string]any{
		"chain_id":       cfg.chainID,
		"title":          cfg.title,
		"description":    cfg.description,
		"token_name":     cfg.tokenName,
		"duration_hours": cfg.durationHours,
	}
	return submitAndWatch(ctx, client, "/api/v1/proposals", body, cfg.waitWindow, logger)
}

func castVote(ctx context.Context, client *apiClient, cfg commandFlags, logger zerolog.Logger) error {
	if cfg.proposalID == "" || cfg.chainID == 0 || cfg.amount == "" || cfg.option == "" {
		return errors.New("vote requires -proposal-id, -chain-id, -amount and -vote")
	}
	body := map[string]any{
		"chain_id": cfg.chainID,
		"amount":   cfg.amount,
		"option":   cfg.option,
	}
	path := "/api/v1/proposals/" + cfg.proposalID + "/vote"
	return submitAndWatch(ctx, client, path, body, cfg.waitWindow, logger)
}

// submitAndWatch posts the request and polls the returned operation until it
// comes to rest or the wait window closes.
func submitAndWatch(ctx context.Context, client *apiClient, path string, body map[string]any, wait time.Duration, logger zerolog.Logger) error {
	var accepted struct {
		OperationID string `json:"operation_id"`
		Status      string `json:"status"`
	}
	if err := client.postJSON(ctx, path, body, &accepted); err != nil {
		return err
	}
	logger.Info().
		Str("operation_id", accepted.OperationID).
		Str("status", accepted.Status).
		Msg("operation accepted")

	deadline := time.Now().Add(wait)
	lastStatus := accepted.Status
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}

		var poll struct {
			Operation struct {
				Status        string `json:"status"`
				Error         string `json:"error"`
				BaseTxHash    string `json:"base_tx_hash"`
				DeliverTxHash string `json:"deliver_tx_hash"`
			} `json:"operation"`
			UserMessage string `json:"user_message"`
		}
		if err := client.getJSON(ctx, "/api/v1/operations/"+accepted.OperationID, &poll); err != nil {
			return err
		}
		if poll.Operation.Status != lastStatus {
			lastStatus = poll.Operation.Status
			logger.Info().Str("status", lastStatus).Msg("operation progressed")
		}
		switch poll.Operation.Status {
		case "completed":
			logger.Info().
				Str("base_tx_hash", poll.Operation.BaseTxHash).
				Str("deliver_tx_hash", poll.Operation.DeliverTxHash).
				Msg("operation completed")
			return nil
		case "retry":
			logger.Error().
				Str("error", poll.Operation.Error).
				Str("user_message", poll.UserMessage).
				Msg("operation failed, retry available")
			return errors.New("operation failed")
		}
	}
	return fmt.Errorf("operation %s still in flight after %s", accepted.OperationID, wait)
}

func watchPingPong(ctx context.Context, client *apiClient, wait time.Duration, logger zerolog.Logger) error {
	deadline := time.Now().Add(wait)
	lastStatus := ""
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}

		var poll struct {
			Status string `json:"status"`
		}
		if err := client.getJSON(ctx, "/api/v1/pingpong/status", &poll); err != nil {
			return err
		}
		if poll.Status != lastStatus {
			lastStatus = poll.Status
			logger.Info().Str("status", lastStatus).Msg("round trip progressed")
		}
		switch poll.Status {
		case "completed":
			logger.Info().Msg("round trip completed")
			return nil
		case "error":
			return errors.New("round trip failed")
		}
	}
	return fmt.Errorf("round trip still running after %s", wait)
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

func (c *apiClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *apiClient) postJSON(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *apiClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if printer, ok := out.(func([]byte)); ok {
		printer(raw)
		return nil
	}
	return json.Unmarshal(raw, out)
}

func printJSON(raw []byte) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(pretty.String())
}
