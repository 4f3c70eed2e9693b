package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"raqam/internal/amqp"
	"raqam/internal/cli"
	"raqam/internal/log"
	"raqam/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.Default(log.ComponentWorker).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)
	logger.InfoContext(context.Background(), "Starting recurring-worker",
		"backend", cfg.DataBackend,
		"interval", cfg.ProcessorInterval,
		"checkpoint", cfg.CheckpointEachOccurrence)

	store, closeStore, err := cli.OpenStore(logger, cfg)
	if err != nil {
		logger.Error("Failed to open store", log.FieldError, err)
		os.Exit(1)
	}

	engine := cli.NewEngine(store, cfg, logger)
	catchUpWorker := worker.NewCatchUpWorker(engine.Processor, engine.Sweeper, cfg.ProcessorInterval, logger)

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing with scheduled sweeps only", log.FieldError, err)
			amqpClient = nil
		}
	} else {
		logger.Info("AMQP disabled - catch-ups run on the sweep interval only")
	}

	var wg sync.WaitGroup
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		wg.Wait()
		if amqpClient != nil {
			amqpClient.Close()
		}
		if err := closeStore(); err != nil {
			logger.Warn("Failed to close store", log.FieldError, err)
		}
	})

	if amqpClient != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := amqpClient.ConsumeCatchUpRequests(ctx, catchUpWorker.HandleCatchUpRequest)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorContext(ctx, "AMQP consumer stopped", log.FieldOperation, log.OpConsume, log.FieldError, err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		catchUpWorker.Run(ctx)
	}()

	cli.WaitForShutdown(ctx, done)
}
