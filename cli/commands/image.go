package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/raven/core"
)

func (a *App) newImageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Generate images from a text prompt",
		Long: `Generate images from a text prompt using the Raven service.

Examples:
  raven image --prompt "a corvid at dusk"
  raven image --prompt "a corvid at dusk" --size 512x512 --out raven.png`,
		RunE: a.runImage,
	}

	cmd.Flags().StringVar(&a.imagePrompt, "prompt", "", "Image prompt (required)")
	cmd.Flags().StringVar(&a.imageSize, "size", string(core.ImageSize1024x1024), "Image size (256x256, 512x512, 1024x1024)")
	cmd.Flags().IntVar(&a.imageCount, "n", 1, "Number of images")
	cmd.Flags().StringVar(&a.imageOut, "out", "", "Write the first image to this file (requests b64 delivery)")

	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func (a *App) runImage(cmd *cobra.Command, args []string) error {
	client, err := a.buildClient()
	if err != nil {
		return err
	}

	req := &core.ImageGenerateRequest{
		Model:  core.ModelID(a.model),
		Prompt: a.imagePrompt,
		N:      a.imageCount,
		Size:   core.ImageSize(a.imageSize),
	}
	if a.imageOut != "" {
		req.ResponseFormat = "b64_json"
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := client.GenerateImage(ctx, req)
	if err != nil {
		return a.handleChatError(err)
	}

	if a.imageOut != "" {
		if len(resp.Data) == 0 {
			return exitWithCode(ExitAPI, fmt.Errorf("service returned no images"))
		}
		raw, err := resp.Data[0].Bytes()
		if err != nil {
			return exitWithCode(ExitAPI, fmt.Errorf("failed to decode image: %w", err))
		}
		if raw == nil {
			return exitWithCode(ExitAPI, fmt.Errorf("service delivered a URL instead of image bytes"))
		}
		if err := os.WriteFile(a.imageOut, raw, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", a.imageOut, err)
		}
		fmt.Fprintf(a.stdout, "Wrote %s (%d bytes)\n", a.imageOut, len(raw))
		return nil
	}

	if a.jsonOutput {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	for i, img := range resp.Data {
		switch {
		case img.URL != "":
			fmt.Fprintf(a.stdout, "[%d] %s\n", i, img.URL)
		case img.B64JSON != "":
			fmt.Fprintf(a.stdout, "[%d] <%d bytes base64>\n", i, len(img.B64JSON))
		}
		if img.RevisedPrompt != "" && a.verbose {
			fmt.Fprintf(a.stderr, "    revised prompt: %s\n", img.RevisedPrompt)
		}
	}
	return nil
}
