// internal/services/catalog_service.go
package services

import (
	"fmt"

	apperrors "github.com/yusukekikuta0509/projectKAIKA/internal/errors"
	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
	"github.com/yusukekikuta0509/projectKAIKA/internal/storage"
)

// CatalogService holds the feeling catalog every new session starts from.
type CatalogService struct {
	feelings []models.Feeling
}

// NewCatalogService uses the built-in catalog, or path when it is set.
func NewCatalogService(store *storage.FileStorage, path string) (*CatalogService, error) {
	if path == "" || store == nil {
		return &CatalogService{feelings: models.DefaultFeelings()}, nil
	}

	var feelings []models.Feeling
	if err := store.LoadJSONFile(path, &feelings); err != nil {
		return nil, apperrors.NewValidationError("load catalog", err)
	}
	if err := validateCatalog(feelings); err != nil {
		return nil, apperrors.NewValidationError("catalog "+path, err)
	}
	return &CatalogService{feelings: feelings}, nil
}

func validateCatalog(feelings []models.Feeling) error {
	if len(feelings) == 0 {
		return fmt.Errorf("catalog is empty")
	}
	seen := make(map[string]bool, len(feelings))
	for _, f := range feelings {
		if err := f.Validate(); err != nil {
			return err
		}
		if seen[f.ID] {
			return fmt.Errorf("duplicate feeling id %s", f.ID)
		}
		seen[f.ID] = true
	}
	return nil
}

// Feelings returns a copy of the catalog.
func (c *CatalogService) Feelings() []models.Feeling {
	return append([]models.Feeling(nil), c.feelings...)
}

func (c *CatalogService) Get(id string) (models.Feeling, error) {
	for _, f := range c.feelings {
		if f.ID == id {
			return f, nil
		}
	}
	return models.Feeling{}, apperrors.NewNotFoundError("feeling "+id, nil)
}

func (c *CatalogService) Terrains() []models.Terrain {
	return append([]models.Terrain(nil), models.Terrains...)
}

// FilterFeelings keeps feelings in category whose ownership matches owned.
func FilterFeelings(feelings []models.Feeling, category models.FeelingCategory, owned bool) []models.Feeling {
	out := make([]models.Feeling, 0, len(feelings))
	for _, f := range feelings {
		if f.Owned != owned {
			continue
		}
		if category != models.CategoryAll && f.Category != category {
			continue
		}
		out = append(out, f)
	}
	return out
}
