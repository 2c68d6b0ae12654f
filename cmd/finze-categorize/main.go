// Command finze-categorize asks the categorization backend about expense
// descriptions or a receipt image, falling back to the keyword table when no
// backend answers. Receipts may be local files or gs:// URIs of archived
// uploads. With -correct it reports a category override instead.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finze/internal/categorizer"
	"finze/internal/cli"
	"finze/internal/config"
	"finze/internal/receipts"
)

func main() {
	userID := flag.String("user", "", "user whose corrections apply")
	receipt := flag.String("receipt", "", "receipt image (path or gs:// URI) to scan instead of categorizing text")
	correct := flag.String("correct", "", "record this category for the given description")
	flag.Parse()

	cfg, logger := cli.Bootstrap("finze-categorize")
	client := categorizer.NewClient(cfg.CategorizerURLs, categorizer.WithCache(cfg.CategorizerCacheSize, cfg.CategorizerCacheTTL))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if base, err := client.Discover(ctx); err != nil {
		logger.Warn("No categorization backend reachable, using keywords", "error", err)
	} else {
		logger.Info("Using categorization backend", "base_url", base)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *receipt != "" {
		image, err := openReceipt(ctx, cfg, *receipt)
		if err != nil {
			logger.Error("Failed to open receipt", "error", err, "receipt", *receipt)
			os.Exit(1)
		}
		defer image.Close()

		rec, err := client.ScanReceipt(ctx, *userID, filepath.Base(*receipt), image)
		if err != nil {
			logger.Error("Receipt scan failed", "error", err)
			os.Exit(1)
		}
		_ = enc.Encode(rec)
		return
	}

	if *correct != "" {
		desc := strings.TrimSpace(strings.Join(flag.Args(), " "))
		if desc == "" || *userID == "" {
			fmt.Fprintln(os.Stderr, "usage: finze-categorize -user id -correct <category> <description>")
			os.Exit(2)
		}
		original := client.Categorize(ctx, categorizer.Request{Description: desc, UserID: *userID})
		err := client.SubmitCorrection(ctx, categorizer.CorrectionRequest{
			UserID:            *userID,
			Description:       desc,
			OriginalCategory:  original.Category,
			CorrectedCategory: *correct,
		})
		if err != nil {
			logger.Error("Correction failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Correction recorded", "description", desc, "from", original.Category, "to", *correct)
		return
	}

	descriptions := flag.Args()
	if len(descriptions) == 0 {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				descriptions = append(descriptions, line)
			}
		}
	}
	if len(descriptions) == 0 {
		fmt.Fprintln(os.Stderr, "usage: finze-categorize [-user id] <description>... | -receipt <image> | -correct <category> <description>")
		os.Exit(2)
	}

	reqs := make([]categorizer.Request, len(descriptions))
	for i, d := range descriptions {
		reqs[i] = categorizer.Request{Description: d, UserID: *userID}
	}
	_ = enc.Encode(categorizer.BatchResult{Results: client.CategorizeBatch(ctx, *userID, reqs)})
}

func openReceipt(ctx context.Context, cfg *config.Config, src string) (io.ReadCloser, error) {
	if !strings.HasPrefix(src, "gs://") {
		return os.Open(src)
	}
	bucket, _, err := receipts.ParseURI(src)
	if err != nil {
		return nil, err
	}
	archive, err := receipts.NewGCSArchive(ctx, bucket, cfg.GoogleCredentialsFile)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	data, err := archive.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
