package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/imageio"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/profile"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/service"
)

// NewRootCmd creates the root Cobra command
func NewRootCmd(root *Root) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "idphoto",
		Short: "Offline tools for the ID photo pipeline",
		Long: `idphoto learns geometric profiles from reference photos and runs the
crop, scoring and enhancement pipeline on local files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newLearnCmd(root))
	rootCmd.AddCommand(newProcessCmd(root))
	rootCmd.AddCommand(newAssessCmd(root))
	rootCmd.AddCommand(newProfileCmd(root))

	return rootCmd
}

func newLearnCmd(root *Root) *cobra.Command {
	var (
		output      string
		toDatabase  bool
		noFile      bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "learn <corpus_directory>",
		Short: "Learn a geometric profile from compliant reference photos",
		Long: `Walks a directory of reference ID photos, measures the face geometry of
every single-face image and stores the mean and standard deviation of the
ratios. Files that cannot be used are reported as warnings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if noFile && !toDatabase {
				return fmt.Errorf("--no-file requires --db")
			}

			detector, err := root.newDetector(ctx)
			if err != nil {
				return fmt.Errorf("create detector: %w", err)
			}

			learner := profile.NewLearner(detector, root.log, root.audit, profile.WithConcurrency(concurrency))
			report, err := learner.Learn(ctx, args[0])
			if report != nil {
				for _, w := range report.Warnings {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", w.Path, w.Reason)
				}
			}
			if err != nil {
				return err
			}

			p := report.Profile
			samples := make([]domain.GeometricRatios, len(report.Samples))
			for i, s := range report.Samples {
				samples[i] = s.Ratios
			}

			if !noFile {
				if err := profile.NewFileSource(output).Save(ctx, p, samples); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "profile written to %s\n", output)
			}
			if toDatabase {
				repo, closeFn, err := root.openDatabase(ctx)
				if err != nil {
					return fmt.Errorf("open database: %w", err)
				}
				defer closeFn()
				if err := repo.Save(ctx, p, samples); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "profile %s stored in database\n", p.ID)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, used %d, skipped %d\n",
				report.Scanned, p.SampleSize, len(report.Warnings))
			fmt.Fprintf(cmd.OutOrStdout(), "head height %.4f ± %.4f, center x %.4f ± %.4f, head top %.4f ± %.4f\n",
				p.Mean.HeadHeight, p.StdDev.HeadHeight,
				p.Mean.CenterX, p.StdDev.CenterX,
				p.Mean.HeadTop, p.StdDev.HeadTop)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", root.cfg.ProfilePath, "profile JSON output path")
	cmd.Flags().BoolVar(&toDatabase, "db", root.cfg.ProfileSource == "database", "also store the profile and its samples in Postgres")
	cmd.Flags().BoolVar(&noFile, "no-file", false, "skip writing the JSON file (requires --db)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "images measured in parallel (default: number of CPUs)")

	return cmd
}

func newProcessCmd(root *Root) *cobra.Command {
	var (
		removeBackground bool
		multiFacePolicy  string
		printJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "process <input_image> <output_image>",
		Short: "Produce a square ID photo from a portrait",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			processor, closeFn, err := root.processor(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := processor.Process(ctx, data, service.ProcessOptions{
				RemoveBackground: removeBackground,
				MultiFacePolicy:  service.MultiFacePolicy(multiFacePolicy),
				RequestID:        uuid.NewString(),
			})
			if err != nil {
				return err
			}

			if err := writeJPEG(args[1], report); err != nil {
				return err
			}

			if printJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			res := report.Processing
			fmt.Fprintf(cmd.OutOrStdout(), "%s: grade %s, score %.4f, %s after %d attempt(s), improvement %.2f%%\n",
				args[1], res.Compliance.Grade, res.Compliance.Score, res.Outcome, len(res.Attempts), res.ImprovementPercentage)
			if report.NeedsReview {
				fmt.Fprintf(cmd.OutOrStdout(), "needs review: %s\n", report.Selection.Status)
			}
			for _, rec := range res.Compliance.Recommendations {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", rec)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&removeBackground, "remove-background", false, "replace the background using BACKGROUND_URL")
	cmd.Flags().StringVar(&multiFacePolicy, "multi-face-policy", "", "continue or reject when several faces are found")
	cmd.Flags().BoolVar(&printJSON, "json", false, "print the full report as JSON")

	return cmd
}

func newAssessCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "assess <input_image>",
		Short: "Score a photo as it is, without cropping or enhancing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			processor, closeFn, err := root.processor(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := processor.Assess(ctx, data, uuid.NewString())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}

func newProfileCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect stored geometric profiles",
	}
	cmd.AddCommand(newProfileShowCmd(root))
	cmd.AddCommand(newProfileListCmd(root))
	cmd.AddCommand(newProfileRecomputeCmd(root))
	return cmd
}

func newProfileShowCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active profile from PROFILE_SOURCE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, closeFn, err := root.profileSource(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			p, err := source.Load(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), p)
		},
	}
}

func newProfileListCmd(root *Root) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List profiles stored in Postgres, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeFn, err := root.openDatabase(cmd.Context())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer closeFn()

			profiles, err := repo.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, p := range profiles {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  samples=%d  head_height=%.4f±%.4f\n",
					p.ID, p.CreatedAt.Format(time.RFC3339), p.SampleSize, p.Mean.HeadHeight, p.StdDev.HeadHeight)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of profiles")
	return cmd
}

func newProfileRecomputeCmd(root *Root) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "recompute <profile_id>",
		Short: "Rebuild a profile from its stored samples",
		Long: `Recomputes mean and standard deviation from the per-sample ratios stored
with a profile. With --save the result is stored as a new profile.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid profile id: %w", err)
			}

			repo, closeFn, err := root.openDatabase(ctx)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer closeFn()

			samples, err := repo.Samples(ctx, id)
			if err != nil {
				return err
			}
			p, err := profile.FromSamples(samples)
			if err != nil {
				return err
			}
			p.ID = uuid.New()
			p.CreatedAt = time.Now().UTC()

			if save {
				if err := repo.Save(ctx, p, samples); err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), p)
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "store the recomputed profile as a new row")
	return cmd
}

// processor builds the pipeline with the configured profile loaded once
func (r *Root) processor(ctx context.Context) (PhotoProcessor, func(), error) {
	source, closeFn, err := r.profileSource(ctx)
	if err != nil {
		return nil, nil, err
	}
	store := profile.NewStore(source, r.log, r.audit)
	if err := store.Reload(ctx); err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		r.log.Warn("profile unavailable, using defaults", "error", err)
	}

	p, err := r.newProcessor(ctx, store)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("create pipeline: %w", err)
	}
	return p, closeFn, nil
}

func writeJPEG(path string, report *service.PhotoReport) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := imageio.EncodeJPEG(f, report.Processing.Image, imageio.DefaultJPEGQuality); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
