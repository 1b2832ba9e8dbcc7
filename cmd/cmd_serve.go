package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdfqa/internal/embedding"
	"pdfqa/internal/llmservice"
	"pdfqa/internal/server"
	"pdfqa/internal/session"
	"pdfqa/web"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Error().Err(err).Msg("Error loading config")
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	llm, err := llmservice.NewClient(&cfg.LLM)
	if err != nil {
		log.Error().Err(err).Msg("Error creating chat client")
		return err
	}
	embedder, err := embedding.NewEmbedder(&cfg.LLM)
	if err != nil {
		log.Error().Err(err).Msg("Error creating embedder")
		return err
	}

	srv, err := server.New(cfg, llm, embedder, session.NewStore(cfg.Server.SessionTTL), web.FS)
	if err != nil {
		log.Error().Err(err).Msg("Error creating server")
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}
