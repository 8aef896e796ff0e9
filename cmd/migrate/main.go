package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"imagetag/internal/config"
	"imagetag/internal/repository/sqlite"
)

var (
	dbPath    string
	imagesDir string
	userEmail string
)

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Database maintenance for the image tagging server",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", cfg.DatabasePath, "Database path")

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Create or upgrade the database schema",
		RunE:  runSchema,
	}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Record image files that are on disk but not in the database",
		RunE:  runImport,
	}
	importCmd.Flags().StringVar(&imagesDir, "images", cfg.ImageDirectory, "Directory containing images")
	importCmd.Flags().StringVar(&userEmail, "user", "", "Email of the account that will own the images (required)")
	importCmd.MarkFlagRequired("user")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show image and tag counts",
		RunE:  runStats,
	}

	rootCmd.AddCommand(schemaCmd, importCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func openDB() (*sqlite.DB, error) {
	db, err := sqlite.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}
	return db, nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	color.New(color.FgGreen).Printf("✓ Schema is up to date in %s\n", dbPath)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	user, err := db.Users().GetByEmail(ctx, userEmail)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("no account with email %s", userEmail)
	}

	fmt.Printf("Importing images from %s for %s\n", imagesDir, user.Username)
	result, err := importImages(ctx, db, imagesDir, user.ID)
	if err != nil {
		return err
	}

	for _, name := range result.Skipped {
		color.New(color.FgYellow).Printf("⚠ Skipped %s\n", name)
	}
	color.New(color.FgGreen).Printf("✓ Imported %d image(s), %d already recorded\n", result.Imported, result.Existing)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	total, err := db.Images().Count(ctx)
	if err != nil {
		return err
	}
	counts, err := db.Tags().CountByTagName(ctx)
	if err != nil {
		return err
	}
	names, err := db.Tags().GetAllTagNames(ctx)
	if err != nil {
		return err
	}

	sort.SliceStable(names, func(i, j int) bool { return counts[names[i]] > counts[names[j]] })

	color.New(color.FgHiCyan, color.Bold).Printf("Images: %d\n", total)
	color.New(color.FgHiCyan, color.Bold).Printf("Tags:   %d distinct\n", len(names))
	for _, name := range names {
		fmt.Printf("  %-20s %s\n", name, color.New(color.FgHiBlack).Sprintf("%d", counts[name]))
	}
	return nil
}
