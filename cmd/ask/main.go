// Command ask answers questions about a policy document from the command
// line, using the same pipeline and configuration as the server.
//
//	ask -doc policy.pdf -q "What is the grace period?" -q "Is maternity covered?"
//	ask -pages ./policy.pdf
//
// -pages prints the text extracted from each page of a local PDF and exits.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"policy-qa-service/internal/app"
	"policy-qa-service/internal/config"
	"policy-qa-service/internal/logger"
	"policy-qa-service/internal/rag"
	"policy-qa-service/models"
)

type questionList []string

func (q *questionList) String() string { return strings.Join(*q, "; ") }

func (q *questionList) Set(v string) error {
	*q = append(*q, v)
	return nil
}

func main() {
	var questions questionList
	doc := flag.String("doc", "", "document URL or file name under DOCUMENTS_DIR")
	flag.Var(&questions, "q", "question to ask (repeatable)")
	pages := flag.String("pages", "", "print the extracted page text of a local PDF and exit")
	flag.Parse()

	if *pages != "" {
		segments, err := rag.NewPDFLoader(logger.New(os.Stderr, "release")).LoadFile(*pages)
		if err != nil {
			log.Fatalf("Failed to read document: %v", err)
		}
		printJSON(segments)
		return
	}

	if *doc == "" || len(questions) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	appLogger := logger.New(os.Stderr, cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		log.Fatal("Failed to initialize service:", err)
	}
	defer application.Close()

	document, err := application.Resolver.Resolve(ctx, *doc)
	if err != nil {
		log.Fatalf("Failed to load document: %v", err)
	}

	answers, err := application.Pipeline.Run(ctx, document, questions)
	if err != nil {
		log.Fatalf("Failed to answer questions: %v", err)
	}

	printJSON(models.QueryResponse{Answers: answers})
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
