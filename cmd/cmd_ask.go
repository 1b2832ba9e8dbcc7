package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdfqa/internal/embedding"
	"pdfqa/internal/helper"
	"pdfqa/internal/llmservice"
	"pdfqa/internal/parser"
	"pdfqa/internal/rag"
)

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer one question about a PDF from the command line",
		RunE:  runAsk,
	}
	cmd.Flags().StringP("file", "f", "", "Path to the PDF document")
	cmd.Flags().StringP("question", "q", "", "Question to be answered")
	cmd.Flags().Bool("json", false, "Print the answer with its context as JSON")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("question")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Error().Err(err).Msg("Error loading config")
		return err
	}

	filePath, _ := cmd.Flags().GetString("file")
	question, _ := cmd.Flags().GetString("question")
	asJSON, _ := cmd.Flags().GetBool("json")

	data, err := parser.ReadPDFFile(filePath)
	if err != nil {
		return err
	}
	if !parser.IsPDF(filePath, data) {
		return fmt.Errorf("%s is not a PDF file", filePath)
	}

	llm, err := llmservice.NewClient(&cfg.LLM)
	if err != nil {
		return err
	}
	embedder, err := embedding.NewEmbedder(&cfg.LLM)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	index, stats, err := rag.Ingest(ctx, embedder, data, parser.ChunkOptionsFromConfig(&cfg.RAG))
	if err != nil {
		log.Error().Err(err).Str("file", filePath).Msg("Error indexing document")
		return err
	}
	log.Info().Str("file", filePath).Int("chunks", stats.Chunks).Msg("Document ready")

	answer, err := rag.NewPipeline(llm, embedder, index, rag.OptionsFromConfig(cfg)).Query(ctx, nil, question)
	if err != nil {
		log.Error().Err(err).Msg("Error answering question")
		return err
	}

	if asJSON {
		helper.PrettyPrint(answer)
		return nil
	}
	fmt.Println(answer.Answer)
	return nil
}
