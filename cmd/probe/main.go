package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/harvestlab/reddit-harvester/internal/config"
	"github.com/harvestlab/reddit-harvester/internal/fetch"
	"github.com/harvestlab/reddit-harvester/internal/reddit"
	"github.com/harvestlab/reddit-harvester/internal/state"
	"github.com/joho/godotenv"
)

// probe checks that search pages and listings are reachable through the
// configured proxies and still parse.
//
//	probe [keyword] [community]
func main() {
	fmt.Println("Reddit harvester - connectivity probe")
	fmt.Println("=====================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	keyword, community := "golang", "golang"
	if len(os.Args) > 1 {
		keyword = os.Args[1]
	}
	if len(os.Args) > 2 {
		community = strings.TrimPrefix(os.Args[2], "r/")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := fetch.NewClient(fetch.Options{
		Proxies:    cfg.Proxies,
		UserAgents: cfg.UserAgents,
		Timeout:    cfg.FetchTimeout,
		MaxRetries: cfg.FetchMaxRetries,
	}, state.NewSignals(cfg.PausePollInterval))
	if err != nil {
		log.Fatalf("Failed to build fetch client: %v", err)
	}

	endpoints := reddit.NewEndpoints(cfg.BaseURL)
	fmt.Printf("\nBase URL: %s | proxies: %d\n", cfg.BaseURL, len(cfg.Proxies))
	fmt.Println(strings.Repeat("-", 40))

	probe("Post search", func() (string, error) {
		page, err := client.Get(ctx, endpoints.Search(keyword, "", reddit.KindPosts, config.DefaultSort, config.DefaultTimeRange), cfg.FetchMaxRetries)
		if err != nil {
			return "", err
		}
		refs, next, err := endpoints.ParsePostSearch(page.Body)
		if err != nil {
			return "", err
		}
		sample := ""
		if len(refs) > 0 {
			sample = refs[0].Title
		}
		return fmt.Sprintf("%d posts, next page: %t, sample: %q", len(refs), next != "", sample), nil
	})

	probe("Comment search", func() (string, error) {
		page, err := client.Get(ctx, endpoints.Search(keyword, "", reddit.KindComments, config.DefaultSort, config.DefaultTimeRange), cfg.FetchMaxRetries)
		if err != nil {
			return "", err
		}
		groups, next, err := endpoints.ParseCommentSearch(page.Body)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d posts with matching comments, next page: %t", len(groups), next != ""), nil
	})

	probe("r/"+community+" listing", func() (string, error) {
		page, err := client.Get(ctx, endpoints.Listing(community, ""), cfg.DetailMaxRetries)
		if err != nil {
			return "", err
		}
		entries, after, err := reddit.ParseListing(page.Body)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "empty listing", nil
		}

		detail, err := client.Get(ctx, endpoints.PostDetail(community, entries[0].ID), cfg.DetailMaxRetries)
		if err != nil {
			return "", err
		}
		d, err := endpoints.ParseDetail(detail.Body, community, entries[0].ID, endpoints.Permalink(entries[0].Permalink))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d posts, after: %q, newest %q has %d comments",
			len(entries), after, d.Post.Title, len(reddit.Flatten(d.Comments))), nil
	})

	fmt.Printf("\nConsecutive errors: %d\n", client.ConsecutiveErrors())
	fmt.Println("\nProbe completed")
}

func probe(name string, fn func() (string, error)) {
	fmt.Printf("- %s... ", name)

	result, err := fn()
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		return
	}
	fmt.Printf("OK (%s)\n", result)
}
