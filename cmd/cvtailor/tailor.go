package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Multitrix/cv-to-job-description/internal/config"
	"github.com/Multitrix/cv-to-job-description/internal/jobdesc"
	"github.com/Multitrix/cv-to-job-description/internal/schemas"
	"github.com/Multitrix/cv-to-job-description/internal/types"
)

var tailorCmd = &cobra.Command{
	Use:   "tailor",
	Short: "Tailor a profile to a job description",
	Long:  "Ingests the profile's snippets, ranks them against the job description, rewrites the bullets under fidelity and fabrication gates, and writes the tailored profile as JSON.",
	RunE:  runTailor,
}

var (
	tailorProfile string
	tailorJobFile string
	tailorJobURL  string
	tailorJobText string
	tailorUser    string
	tailorConfig  string
	tailorOut     string
	tailorAPIKey  string
	tailorVerbose bool
)

func init() {
	tailorCmd.Flags().StringVarP(&tailorProfile, "profile", "p", "", "Path to profile JSON file")
	tailorCmd.Flags().StringVarP(&tailorJobFile, "job", "j", "", "Path to job description text file")
	tailorCmd.Flags().StringVar(&tailorJobURL, "job-url", "", "URL to fetch the job description from")
	tailorCmd.Flags().StringVar(&tailorJobText, "job-text", "", "Job description text passed inline")
	tailorCmd.Flags().StringVarP(&tailorUser, "user", "u", "", "User ID the profile snippets are indexed under")
	tailorCmd.Flags().StringVarP(&tailorConfig, "config", "c", "", "Path to JSON config file")
	tailorCmd.Flags().StringVarP(&tailorOut, "out", "o", "", "Path to write the tailored profile to (default stdout)")
	tailorCmd.Flags().StringVar(&tailorAPIKey, "api-key", "", "Gemini API key (overrides config and environment)")
	tailorCmd.Flags().BoolVarP(&tailorVerbose, "verbose", "v", false, "Print detailed debug information")

	rootCmd.AddCommand(tailorCmd)
}

func runTailor(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(tailorConfig)
	if err != nil {
		return err
	}
	mergeTailorFlags(cfg)

	if cfg.UserID == "" {
		return fmt.Errorf("a user ID is required (flag --user or config user_id)")
	}
	if cfg.Profile == "" {
		return fmt.Errorf("a profile file is required (flag --profile or config profile)")
	}

	log, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	profile, err := loadProfile(cfg.Profile)
	if err != nil {
		return err
	}

	jd, err := resolveJob(ctx, cfg)
	if err != nil {
		return err
	}

	b, err := buildBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	tailored, err := b.pipeline.Tailor(ctx, cfg.UserID, profile, jd)
	if err != nil {
		return err
	}

	return writeTailored(cfg.Output, tailored)
}

// mergeTailorFlags applies explicitly set flags on top of the config file
func mergeTailorFlags(cfg *config.Config) {
	if tailorProfile != "" {
		cfg.Profile = tailorProfile
	}
	if tailorJobFile != "" {
		cfg.Job = tailorJobFile
	}
	if tailorJobURL != "" {
		cfg.JobURL = tailorJobURL
	}
	if tailorUser != "" {
		cfg.UserID = tailorUser
	}
	if tailorOut != "" {
		cfg.Output = tailorOut
	}
	if tailorAPIKey != "" {
		cfg.APIKey = tailorAPIKey
	}
	if tailorVerbose {
		cfg.Verbose = true
	}
}

// loadProfile reads and validates a profile JSON file
func loadProfile(path string) (*types.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	if err := schemas.ValidateProfile(data); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}

	var profile types.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return &profile, nil
}

// resolveJob derives the job description from the inline text, file, or URL
// source, in that order of precedence
func resolveJob(ctx context.Context, cfg *config.Config) (types.JobDescription, error) {
	var text string
	var err error

	switch {
	case tailorJobText != "":
		text = tailorJobText
	case cfg.Job != "":
		text, err = jobdesc.FromFile(cfg.Job)
	case cfg.JobURL != "":
		text, err = jobdesc.FromURL(ctx, cfg.JobURL)
	default:
		return types.JobDescription{}, fmt.Errorf("a job description is required (one of --job, --job-url, --job-text)")
	}
	if err != nil {
		return types.JobDescription{}, fmt.Errorf("failed to load job description: %w", err)
	}

	jd := types.JobDescription{Description: text}
	if err := jd.Validate(); err != nil {
		return types.JobDescription{}, fmt.Errorf("invalid job description: %w", err)
	}
	return jd, nil
}

// writeTailored writes the tailored profile as indented JSON to the output
// path, or stdout when none is set
func writeTailored(path string, tailored *types.TailoredProfile) error {
	jsonBytes, err := json.MarshalIndent(tailored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tailored profile: %w", err)
	}

	if path == "" {
		_, err = fmt.Println(string(jsonBytes))
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, jsonBytes, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "Tailored profile written to %s\n", path)
	return nil
}
