package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kikiluvv/slopdetect/internal/config"
	"github.com/kikiluvv/slopdetect/internal/detect"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var explainText bool

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run a single detection and print the JSON result",
}

var detectTextCmd = &cobra.Command{
	Use:   "text [text or @file]",
	Short: "Classify a piece of text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textArg(args[0])
		if err != nil {
			return err
		}

		pipe, err := buildPipeline(cmd.Context(), config.FromContext(cmd.Context()), needText)
		if err != nil {
			return err
		}
		defer pipe.Close()

		res, err := pipe.Text(cmd.Context(), text, explainText)
		return printResult(cmd, res, err)
	},
}

var detectImageCmd = &cobra.Command{
	Use:   "image [file]",
	Short: "Classify an image and render its heatmap",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		pipe, err := buildPipeline(cmd.Context(), config.FromContext(cmd.Context()), needImage)
		if err != nil {
			return err
		}
		defer pipe.Close()

		res, err := pipe.Image(cmd.Context(), f)
		return printResult(cmd, res, err)
	},
}

var detectVideoCmd = &cobra.Command{
	Use:   "video [file]",
	Short: "Classify sampled frames of a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return err
		}

		pipe, err := buildPipeline(cmd.Context(), config.FromContext(cmd.Context()), needVideo)
		if err != nil {
			return err
		}
		defer pipe.Close()

		res, err := pipe.VideoFile(cmd.Context(), args[0])
		return printResult(cmd, res, err)
	},
}

func init() {
	detectTextCmd.Flags().BoolVar(&explainText, "explain", false, "include word attributions")

	detectCmd.AddCommand(detectTextCmd)
	detectCmd.AddCommand(detectImageCmd)
	detectCmd.AddCommand(detectVideoCmd)
}

// textArg reads @path arguments from disk.
func textArg(arg string) (string, error) {
	path, ok := strings.CutPrefix(arg, "@")
	if !ok {
		return arg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// printResult writes the same JSON body the HTTP API would send.
func printResult[T any](cmd *cobra.Command, res *T, err error) error {
	var body any = res
	if err != nil {
		log.Error().Err(err).Str("kind", string(detect.KindOf(err))).Msg("detection failed")
		body = detect.ErrorResponse{Error: err.Error()}
	}

	out, mErr := json.MarshalIndent(body, "", "  ")
	if mErr != nil {
		return mErr
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
