// Command fiximages upgrades stored image URLs from http to https for a given host.
package main

import (
	"context"
	"flag"
	"log"
	"net/url"
	"strings"

	"explorer/internal/bootstrap"
	"explorer/internal/config"
	"explorer/internal/observability"
	"explorer/internal/repository"
)

func main() {
	hostSuffix := flag.String("host", "", "Rewrite http:// URLs whose host ends with this suffix (required)")
	batchSize := flag.Int("batch", 100, "Experiences loaded per batch")
	dryRun := flag.Bool("dry-run", false, "Report what would change without writing")
	flag.Parse()

	if strings.TrimSpace(*hostSuffix) == "" {
		log.Fatal("usage: go run ./cmd/fiximages -host example.com [-batch 100] [-dry-run]")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := observability.NewLogger(cfg.IsProduction())

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, logger, bootstrap.Options{SkipSchema: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer rt.Close()

	rewrite := HTTPSRewriter(*hostSuffix)
	if *dryRun {
		inner := rewrite
		rewrite = func(ref string) (string, bool) {
			if next, ok := inner(ref); ok {
				log.Printf("would rewrite %s -> %s", ref, next)
			}
			return ref, false
		}
	}

	stats, err := repository.NewExperienceRepository(rt.DB).RewriteImages(ctx, *batchSize, rewrite)
	if err != nil {
		log.Fatalf("Rewrite failed after %d experiences: %v", stats.Scanned, err)
	}
	log.Printf("scanned=%d updated=%d dry_run=%t", stats.Scanned, stats.Updated, *dryRun)
}

// HTTPSRewriter returns a rewrite that switches http URLs on hosts ending in suffix to https.
func HTTPSRewriter(suffix string) func(string) (string, bool) {
	suffix = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(suffix), "."))
	return func(ref string) (string, bool) {
		u, err := url.Parse(ref)
		if err != nil || u.Scheme != "http" {
			return ref, false
		}
		host := strings.ToLower(u.Hostname())
		if host != suffix && !strings.HasSuffix(host, "."+suffix) {
			return ref, false
		}
		u.Scheme = "https"
		return u.String(), true
	}
}
