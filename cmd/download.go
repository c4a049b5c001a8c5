package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kesrev/rmanfetch/internal/httpclient"
	"github.com/kesrev/rmanfetch/internal/orchestrator"
	"github.com/kesrev/rmanfetch/internal/output"
	"github.com/kesrev/rmanfetch/internal/rman"
	"github.com/kesrev/rmanfetch/internal/transfer"
)

// buildOrchestratorConfig assembles an orchestrator.Config and an
// httpclient.Client shared by both the synchronous and overlapped
// download actions.
func buildOrchestratorConfig() (orchestrator.Config, *httpclient.Client, error) {
	if prefix == "" {
		return orchestrator.Config{}, nil, fmt.Errorf("--prefix is required for download actions")
	}
	mode, err := parseRangeMode(rangeModeFlag)
	if err != nil {
		return orchestrator.Config{}, nil, err
	}
	cfg := orchestrator.Config{
		Prefix:         prefix,
		OutputDir:      outputDir,
		MaxConnections: connections,
		BufferSize:     bufferSize,
		MaxRangeHeader: maxRangeHeader,
		RangeModePref:  mode,
		Retry:          retry,
		Nowrite:        nowriteFlag,
	}
	client := httpclient.New(httpclient.Config{
		Timeout:            timeout,
		KeepAliveTimeout:   kaTimeout,
		ProxyURL:           proxyURL,
		ProxyUsername:      proxyUsername,
		ProxyPassword:      proxyPassword,
		UserAgent:          userAgent,
		HighThroughputMode: highThroughput,
	})
	return cfg, client, nil
}

func newDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Download the filtered file set, one file at a time with per-bundle retry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(orchestrator.RunSynchronous)
		},
	}
}

func newDownload2Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download2",
		Short: "Download the filtered file set with overlapped (pipelined) scheduling",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(orchestrator.RunOverlapped)
		},
	}
}

func runDownload(run func(*rman.FileList, transfer.Doer, orchestrator.Config, *output.Manager) error) error {
	list, err := loadPlan()
	if err != nil {
		return err
	}
	cfg, client, err := buildOrchestratorConfig()
	if err != nil {
		return err
	}
	if !nowriteFlag {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	mgr := output.NewManager()
	mgr.StartDisplay()
	runErr := run(list, client, cfg, mgr)
	mgr.StopDisplay()

	if runErr != nil {
		return fmt.Errorf("download failed: %w", runErr)
	}
	for _, f := range mgr.Snapshot() {
		if f.Status == "error" {
			return fmt.Errorf("one or more files failed to download")
		}
	}
	return nil
}
