package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackmichael/bluesky-paper-feed/internal/bluesky"
)

type publishOptions struct {
	handle      string
	password    string
	pds         string
	serviceDID  string
	rkey        string
	name        string
	description string
	avatar      string
	unpublish   bool
}

func publishCmd() *cobra.Command {
	var opts publishOptions

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish or remove the app.bsky.feed.generator record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.handle, "handle", os.Getenv("BLUESKY_HANDLE"), "Bluesky handle (e.g. user.bsky.social)")
	f.StringVar(&opts.password, "password", os.Getenv("BLUESKY_APP_PASSWORD"), "Bluesky app password")
	f.StringVar(&opts.pds, "pds", envOr("BLUESKY_PDS", bluesky.DefaultPDS), "PDS service URL")
	f.StringVar(&opts.serviceDID, "service-did", serviceDIDFromEnv(), "feed generator service DID (e.g. did:web:feed.example.com)")
	f.StringVar(&opts.rkey, "rkey", envOr("FEEDGEN_FEED_RKEY", "papers"), "record key of the feed")
	f.StringVar(&opts.name, "name", envOr("FEEDGEN_FEED_NAME", "Paper Skygest"), "feed display name (max 24 graphemes)")
	f.StringVar(&opts.description, "description", os.Getenv("FEEDGEN_FEED_DESCRIPTION"), "feed description (max 300 graphemes)")
	f.StringVar(&opts.avatar, "avatar", "", "path to a PNG or JPEG avatar")
	f.BoolVar(&opts.unpublish, "unpublish", false, "delete the feed generator record instead of publishing")
	return cmd
}

func serviceDIDFromEnv() string {
	if did := os.Getenv("FEEDGEN_SERVICE_DID"); did != "" {
		return did
	}
	if host := os.Getenv("FEEDGEN_HOSTNAME"); host != "" {
		return "did:web:" + host
	}
	return ""
}

func runPublish(ctx context.Context, opts publishOptions) error {
	if opts.handle == "" || opts.password == "" {
		return fmt.Errorf("--handle and --password are required (or set BLUESKY_HANDLE and BLUESKY_APP_PASSWORD)")
	}
	if opts.rkey == "" {
		return fmt.Errorf("--rkey is required")
	}

	client := bluesky.NewClient(opts.pds)

	fmt.Printf("Logging in as %s...\n", opts.handle)
	if err := client.Login(ctx, opts.handle, opts.password); err != nil {
		return err
	}
	fmt.Printf("Authenticated as %s\n", client.DID())

	if opts.unpublish {
		if err := client.UnpublishFeedGenerator(ctx, opts.rkey); err != nil {
			return err
		}
		fmt.Printf("Feed unpublished: %s\n", client.GeneratorURI(opts.rkey))
		return nil
	}

	if opts.serviceDID == "" {
		return fmt.Errorf("--service-did is required for publishing (or set FEEDGEN_SERVICE_DID)")
	}
	if opts.name == "" {
		return fmt.Errorf("--name is required for publishing")
	}

	record := bluesky.FeedGeneratorRecord{
		DID:         opts.serviceDID,
		DisplayName: opts.name,
		Description: opts.description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	if opts.avatar != "" {
		data, err := os.ReadFile(opts.avatar)
		if err != nil {
			return fmt.Errorf("read avatar: %w", err)
		}
		mimeType := mime.TypeByExtension(filepath.Ext(opts.avatar))
		if mimeType == "" {
			mimeType = "image/png"
		}
		blob, err := client.UploadBlob(ctx, data, mimeType)
		if err != nil {
			return err
		}
		record.Avatar = blob
	}

	if err := client.PublishFeedGenerator(ctx, opts.rkey, record); err != nil {
		return err
	}
	fmt.Printf("Feed published: %s\n", client.GeneratorURI(opts.rkey))
	return nil
}
