package main

import (
	"errors"
	"fmt"

	"annobox/pkg/annotation"
	"annobox/pkg/config"
	"annobox/pkg/submit"
)

var errNoBatch = errors.New("no batch file: pass --batch or set batch_file")

// loadBatch reads the configured batch. The global testing switch turns
// every item into a dry run.
func loadBatch(cfg *config.Config) (annotation.Batch, error) {
	if cfg.BatchFile == "" {
		return nil, errNoBatch
	}
	batch, err := annotation.LoadBatch(cfg.BatchFile)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.BatchFile, err)
	}
	if cfg.Testing {
		for i := range batch {
			batch[i].Testing = true
		}
	}
	return batch, nil
}

func newSubmitClient(cfg *config.Config) *submit.Client {
	return submit.NewClient(submit.ClientConfig{
		BaseURL: cfg.ServerURL,
		Timeout: cfg.Submit.Timeout,
		Retry: submit.RetryPolicy{
			Attempts: cfg.Submit.Attempts,
			Delay:    cfg.Submit.Delay,
		},
		Logger: logger,
	})
}
