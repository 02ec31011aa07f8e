// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	baseURL   string
	sessionID string
	authToken string

	rootCmd = &cobra.Command{
		Use:   "datachat",
		Short: "A cli to chat with the DAAgent data analysis service",
		Long: `datachat sends natural language questions to the DAAgent
orchestrator, which plans them, runs SQL against your data, and answers
in plain language.`,
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Asks a single question and prints the answer",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Starts an interactive chat session",
		Run:   runChatCommand,
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Prints the persisted conversation history for a session",
		Run:   runHistoryCommand,
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Clears a session's conversation state",
		Run:   runResetCommand,
	}

	cancelCmd = &cobra.Command{
		Use:   "cancel",
		Short: "Cancels the session's in-flight request",
		Run:   runCancelCommand,
	}

	// --- Session administration ---
	sessionsCmd = &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}
	sessionsListCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists known sessions, most recently used first",
		Run:   runSessionsListCommand,
	}
	sessionsCreateCmd = &cobra.Command{
		Use:   "create [title]",
		Short: "Creates a new session",
		Run:   runSessionsCreateCommand,
	}
	sessionsDeleteCmd = &cobra.Command{
		Use:   "delete [session-id]",
		Short: "Deletes a session and its history",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionsDeleteCommand,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", defaultBaseURL(),
		"Base URL of the orchestrator service")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "",
		"Session id (defaults to the server's default session)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("DAAGENT_AUTH_TOKEN"),
		"Bearer token for authenticated deployments")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsCreateCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(askCmd, chatCmd, historyCmd, resetCmd, cancelCmd, sessionsCmd)
}

func defaultBaseURL() string {
	if v := os.Getenv("DAAGENT_ORCHESTRATOR_URL"); v != "" {
		return v
	}
	return "http://localhost:8100"
}

func client() *apiClient {
	return newAPIClient(strings.TrimRight(baseURL, "/"), authToken)
}

func runAskCommand(cmd *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	resp, err := client().Chat(cmd.Context(), sessionID, question)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	printChatResponse(resp)
}

func runChatCommand(cmd *cobra.Command, args []string) {
	// Ctrl-C cancels the in-flight turn server-side, then exits.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		if _, err := client().Cancel(context.Background(), sessionID); err != nil {
			fmt.Fprintf(os.Stderr, "cancel failed: %v\n", err)
		}
		cancel()
	}()

	fmt.Println("Connected. Type your question, or 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		resp, err := client().Chat(ctx, sessionID, line)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		printChatResponse(resp)
	}
}

func printChatResponse(resp *datatypes.ChatResponse) {
	if resp.Cancelled {
		fmt.Println("(request cancelled)")
		return
	}
	fmt.Printf("\n%s\n", resp.Response)
	if len(resp.PlotSpec) > 0 {
		fmt.Printf("\nPlot spec:\n%s\n", string(resp.PlotSpec))
	}
}

func runHistoryCommand(cmd *cobra.Command, args []string) {
	resp, err := client().History(cmd.Context(), sessionID)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if len(resp.Messages) == 0 {
		fmt.Printf("No history for session %q.\n", resp.SessionID)
		return
	}
	for _, rec := range resp.Messages {
		fmt.Printf("[%s] You: %s\n", rec.CreatedAt.Format("2006-01-02 15:04"), rec.Message)
		fmt.Printf("            Bot: %s\n", rec.Response)
	}
}

func runResetCommand(cmd *cobra.Command, args []string) {
	resp, err := client().Reset(cmd.Context(), sessionID)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("%s (%d persisted messages removed)\n", resp.Message, resp.DeletedCount)
}

func runCancelCommand(cmd *cobra.Command, args []string) {
	resp, err := client().Cancel(cmd.Context(), sessionID)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Println(resp.Message)
}

func runSessionsListCommand(cmd *cobra.Command, args []string) {
	resp, err := client().ListSessions(cmd.Context())
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if len(resp.Sessions) == 0 {
		fmt.Println("No sessions.")
		return
	}
	for _, s := range resp.Sessions {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s  %s  last used %s\n", s.ID, title, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
}

func runSessionsCreateCommand(cmd *cobra.Command, args []string) {
	title := strings.Join(args, " ")
	info, err := client().CreateSession(cmd.Context(), title)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("Created session %s\n", info.ID)
}

func runSessionsDeleteCommand(cmd *cobra.Command, args []string) {
	resp, err := client().DeleteSession(cmd.Context(), args[0])
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Println(resp.Message)
}
