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
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/ani-companion/services/bandit"
	"github.com/AleutianAI/ani-companion/services/companion/config"
	"github.com/AleutianAI/ani-companion/services/companion/features"
	"github.com/AleutianAI/ani-companion/services/companion/journal"
	"github.com/AleutianAI/ani-companion/services/companion/observability"
	"github.com/AleutianAI/ani-companion/services/companion/routes"
	"github.com/AleutianAI/ani-companion/services/companion/state"
	"github.com/AleutianAI/ani-companion/services/llm"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"

	"github.com/prometheus/client_golang/prometheus"
)

var globalLLMClient llm.LLMClient

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "ani-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("companion-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	selector, err := bandit.New(cfg.Bandit.Arms, features.ContextDim, cfg.Bandit.Alpha)
	if err != nil {
		log.Fatalf("FATAL: Could not initialize the tone selector: %v", err)
	}

	conversation := state.NewStore(cfg.StatePath)

	turns, err := journal.Open(journal.Config{Dir: cfg.DataDir})
	if err != nil {
		log.Fatalf("Failed to open the turn journal: %v", err)
	}
	defer func() {
		if err := turns.Close(); err != nil {
			slog.Error("failed to close the turn journal", "error", err)
		}
	}()

	log.Println("Configuring the LLM Client")
	switch cfg.LLM.Backend {
	case "openai":
		globalLLMClient, err = llm.NewOpenAIClient(cfg.LLM.Model)
		if err != nil {
			log.Fatalf("Failed to initialize LLM client: %v", err)
		}
		slog.Info("Using OpenAI LLM backend", "model", cfg.LLM.Model)
	default:
		// A nil client makes every reply fall through to the stub.
		slog.Warn("LLM backend set to stub. Serving deterministic replies only.")
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	router := gin.Default()
	router.Use(otelgin.Middleware("companion-service"))

	routes.SetupRoutes(router, globalLLMClient, selector, conversation, turns, metrics)

	log.Println("Starting the companion server on port ", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
