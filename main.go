package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/vietddude/stylelog"

	"github.com/mhmod01110/priv-band-ai/internal/control"
	"github.com/mhmod01110/priv-band-ai/internal/core/config"
	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

// Smoke run: analyze one sample policy against live providers using only
// environment credentials. The real entrypoint is cmd/analyzer.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	openaiKey := os.Getenv("OPENAI_API_KEY")
	geminiKey := os.Getenv("GEMINI_API_KEY")
	if openaiKey == "" {
		log.Fatalf("OPENAI_API_KEY is not set")
	}
	if geminiKey == "" {
		log.Fatalf("GEMINI_API_KEY is not set")
	}

	stylelog.InitDefault()

	cfg := &config.AppConfig{
		Providers: []config.ProviderConfig{
			{
				Name:    "openai",
				Kind:    "openai",
				BaseURL: "https://api.openai.com/v1",
				APIKey:  openaiKey,
				Model:   "gpt-4o-mini",
				Timeout: 90 * time.Second,
			},
			{
				Name:    "gemini",
				Kind:    "gemini",
				BaseURL: "https://generativelanguage.googleapis.com/v1beta",
				APIKey:  geminiKey,
				Model:   "gemini-2.0-flash",
				Timeout: 90 * time.Second,
			},
		},
	}
	cfg.Router.Primary = "openai"
	cfg.Router.Secondary = "gemini"
	cfg.Pipeline.SoftDeadline = 4 * time.Minute
	cfg.Pipeline.HardDeadline = 5 * time.Minute

	progress := func(p domain.Progress) {
		fmt.Printf("  [%d/%d] %s\n", p.Current, p.Total, p.Status)
	}

	svc, err := control.NewService(cfg, progress, slog.Default())
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer svc.Stop(context.Background())

	req := domain.AnalysisRequest{
		ShopName:           "Acme Outdoors",
		ShopSpecialization: "camping gear",
		PolicyType:         domain.PolicyReturnExchange,
		PolicyText: "Items may be returned within 30 days of delivery for a full refund. " +
			"Products must be unused and in their original packaging with proof of purchase. " +
			"Refunds are issued to the original payment method; exchanges for a different size " +
			"or color are free. Return shipping is covered for defective or damaged items. " +
			"A 10% restocking fee applies to opened electronics.",
	}

	fmt.Println("=== Analyzing sample return policy ===")
	result, err := svc.Analyze(context.Background(), req)
	if err != nil {
		log.Fatalf("analyze failed: %v", err)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}
