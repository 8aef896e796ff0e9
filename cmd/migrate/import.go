package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"imagetag/internal/model"
	"imagetag/internal/repository"
	"imagetag/internal/service/gallery"
)

type importResult struct {
	Imported int
	Existing int
	Skipped  []string
}

// importImages records every supported image in dir that has no row yet, owned by userID.
// Files are referenced by name, so dir should be the server's image directory.
func importImages(ctx context.Context, store repository.Store, dir string, userID int64) (*importResult, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read images directory: %w", err)
	}

	result := &importResult{}
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !gallery.IsSupportedImage(name) {
			result.Skipped = append(result.Skipped, name)
			continue
		}

		existing, err := store.Images().GetByFilename(ctx, name)
		if err != nil {
			return result, err
		}
		if existing != nil {
			result.Existing++
			continue
		}

		if _, err := store.Images().Insert(ctx, &model.UserImage{UserID: userID, Filename: name}); err != nil {
			return result, fmt.Errorf("failed to record %s: %w", name, err)
		}
		result.Imported++
	}

	return result, nil
}
