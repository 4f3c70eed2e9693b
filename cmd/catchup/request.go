package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"raqam/internal/amqp"
)

var flagRequestOwner string

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Queue a catch-up request for a worker to pick up",
	RunE:  runRequest,
}

func init() {
	requestCmd.Flags().StringVarP(&flagRequestOwner, "owner", "o", "", "Owner to catch up")
	_ = requestCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(requestCmd)
}

func runRequest(cmd *cobra.Command, _ []string) error {
	if !cfg.AMQPEnabled() {
		return errors.New("AMQP_URL is not set; catch-up requests need a broker")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()

	if err := client.PublishCatchUpRequest(ctx, flagRequestOwner); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "catch-up requested for %s\n", flagRequestOwner)
	return nil
}
