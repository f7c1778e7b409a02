package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"star-art-studio/internal/blueprint"
	"star-art-studio/internal/generator"
	"star-art-studio/internal/studio"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

type studioFactory func(ctx context.Context) (*studio.Orchestrator, error)

type generateFlags struct {
	timeOfDay   string
	weather     string
	cameraAngle string
	cameraFOV   string
	style       string
	out         string
	format      string
}

func newRootCmd(factory studioFactory) *cobra.Command {
	root := &cobra.Command{
		Use:          "studio",
		Short:        "Turn a scene description into a JSON blueprint and concept art",
		SilenceUsage: true,
	}
	root.AddCommand(newGenerateCmd(factory), newOptionsCmd())
	return root
}

func newGenerateCmd(factory studioFactory) *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate <description>",
		Short: "Build a blueprint, then render 4 images from it",
		Long: `Build a structured blueprint from a free-text scene description, then
render a batch of images from the blueprint's final prompt.

Options left empty or set to "auto" are chosen by the model.
The blueprint is printed to stdout and written with the images to --out.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, factory, f, strings.Join(args, " "))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.timeOfDay, "time-of-day", blueprint.Auto, "one of: "+strings.Join(blueprint.TimesOfDay(), ", "))
	flags.StringVar(&f.weather, "weather", blueprint.Auto, "one of: "+strings.Join(blueprint.Weathers(), ", "))
	flags.StringVar(&f.cameraAngle, "camera-angle", blueprint.Auto, "one of: "+strings.Join(blueprint.CameraAngles(), ", "))
	flags.StringVar(&f.cameraFOV, "camera-fov", blueprint.Auto, "one of: "+strings.Join(blueprint.CameraFOVs(), ", "))
	flags.StringVar(&f.style, "style", blueprint.Auto, "one of: "+strings.Join(blueprint.ArtisticStyles(), ", "))
	flags.StringVarP(&f.out, "out", "o", "concepts", "directory for blueprint.json and images")
	flags.StringVar(&f.format, "format", formatJSON, "blueprint output format: json or yaml")
	return cmd
}

func (f generateFlags) options() (generator.Options, error) {
	opts := generator.Options{
		TimeOfDay:     f.timeOfDay,
		Weather:       f.weather,
		CameraAngle:   f.cameraAngle,
		CameraFOV:     f.cameraFOV,
		ArtisticStyle: f.style,
	}
	if err := opts.Validate(); err != nil {
		return generator.Options{}, err
	}
	return opts, nil
}

func runGenerate(cmd *cobra.Command, factory studioFactory, f generateFlags, description string) error {
	if f.format != formatJSON && f.format != formatYAML {
		return fmt.Errorf("unknown format %q", f.format)
	}
	if strings.TrimSpace(description) == "" {
		return studio.ErrEmptyDescription
	}
	opts, err := f.options()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, err := factory(ctx)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	updates, unsubscribe := st.Subscribe(4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range updates {
			if snap.Phase.Loading() {
				fmt.Fprintln(stderr, snap.Phase.Message())
			}
		}
	}()

	runErr := st.Run(ctx, description, opts)
	unsubscribe()
	<-done

	snap := st.Snapshot()
	if snap.Blueprint != nil {
		if err := printBlueprint(cmd.OutOrStdout(), *snap.Blueprint, f.format); err != nil {
			return err
		}
	}
	if runErr != nil {
		if snap.Blueprint != nil {
			if err := writeBlueprint(f.out, *snap.Blueprint); err != nil {
				fmt.Fprintln(stderr, "write blueprint:", err)
			} else {
				fmt.Fprintln(stderr, "wrote", filepath.Join(f.out, "blueprint.json"))
			}
		}
		if snap.Error != "" {
			return errors.New(snap.Error)
		}
		return runErr
	}

	paths, err := writeOutputs(ctx, f.out, *snap.Blueprint, snap.Images)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(stderr, "wrote", p)
	}
	return nil
}

func printBlueprint(w io.Writer, bp blueprint.Blueprint, format string) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(bp); err != nil {
			return err
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(bp)
}

func writeBlueprint(dir string, bp blueprint.Blueprint) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(bp, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "blueprint.json"), data, 0o644)
}

// writeOutputs stores the blueprint and every image. Files are written
// concurrently; the returned paths keep batch order.
func writeOutputs(ctx context.Context, dir string, bp blueprint.Blueprint, images []generator.Image) ([]string, error) {
	if err := writeBlueprint(dir, bp); err != nil {
		return nil, fmt.Errorf("write blueprint: %w", err)
	}

	paths := make([]string, len(images)+1)
	paths[0] = filepath.Join(dir, "blueprint.json")

	g, gctx := errgroup.WithContext(ctx)
	for i, img := range images {
		path := filepath.Join(dir, fmt.Sprintf("concept-%d%s", i+1, img.Extension()))
		paths[i+1] = path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := os.WriteFile(path, img.Data, 0o644); err != nil {
				return fmt.Errorf("write image %d: %w", i+1, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func newOptionsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "options",
		Short: "List the overridable generation options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := blueprint.Catalog()
			out := cmd.OutOrStdout()

			switch format {
			case formatJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(catalog)
			case formatYAML:
				return yaml.NewEncoder(out).Encode(catalog)
			case "text":
				for _, sel := range catalog {
					keys := make([]string, 0, len(sel.Options))
					for _, o := range sel.Options {
						keys = append(keys, o.Key)
					}
					fmt.Fprintf(out, "%s (%s): %s\n", sel.Label, sel.Param, strings.Join(keys, ", "))
				}
				return nil
			}
			return fmt.Errorf("unknown format %q", format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "text, json or yaml")
	return cmd
}
