package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"assetlend/internal/apperr"
	"assetlend/internal/authz"
	"assetlend/internal/model"
	"assetlend/internal/repository"
)

type CategoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}

type CategoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

type CategoryService interface {
	List(ctx context.Context, skip, limit int) ([]CategoryResponse, int64, error)
	Get(ctx context.Context, id string) (*CategoryResponse, error)
	Create(ctx context.Context, actor authz.Caller, req CategoryRequest) (*CategoryResponse, error)
	Update(ctx context.Context, actor authz.Caller, id string, req CategoryRequest) (*CategoryResponse, error)
	Delete(ctx context.Context, actor authz.Caller, id string) error
}

type categoryService struct {
	repo  repository.CategoryRepository
	audit AuditService
}

func NewCategoryService(repo repository.CategoryRepository, audit AuditService) CategoryService {
	return &categoryService{repo: repo, audit: audit}
}

func toCategoryResponse(c *model.AssetCategory) *CategoryResponse {
	return &CategoryResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   formatTime(c.CreatedAt),
	}
}

func (s *categoryService) List(ctx context.Context, skip, limit int) ([]CategoryResponse, int64, error) {
	cats, total, err := s.repo.List(ctx, skip, limit)
	if err != nil {
		return nil, 0, notFoundOr(err, "Asset Category", "list categories")
	}
	res := make([]CategoryResponse, 0, len(cats))
	for i := range cats {
		res = append(res, *toCategoryResponse(&cats[i]))
	}
	return res, total, nil
}

func (s *categoryService) Get(ctx context.Context, id string) (*CategoryResponse, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return toCategoryResponse(c), nil
}

func (s *categoryService) Create(ctx context.Context, actor authz.Caller, req CategoryRequest) (*CategoryResponse, error) {
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUnique(ctx, name, uuid.Nil); err != nil {
		return nil, err
	}
	c := &model.AssetCategory{Name: name, Description: req.Description}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, notFoundOr(err, "Asset Category", "create category")
	}
	s.record(ctx, actor, model.ActionCreate, c.ID)
	return toCategoryResponse(c), nil
}

func (s *categoryService) Update(ctx context.Context, actor authz.Caller, id string, req CategoryRequest) (*CategoryResponse, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUnique(ctx, name, c.ID); err != nil {
		return nil, err
	}
	c.Name = name
	c.Description = req.Description
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, notFoundOr(err, "Asset Category", "update category")
	}
	s.record(ctx, actor, model.ActionUpdate, c.ID)
	return toCategoryResponse(c), nil
}

// Delete refuses while any asset still references the category.
func (s *categoryService) Delete(ctx context.Context, actor authz.Caller, id string) error {
	c, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	n, err := s.repo.CountAssets(ctx, c.ID)
	if err != nil {
		return notFoundOr(err, "Asset Category", "count assets")
	}
	if n > 0 {
		return apperr.Validation("Category still has assets and cannot be deleted")
	}
	if err := s.repo.Delete(ctx, c.ID); err != nil {
		return notFoundOr(err, "Asset Category", "delete category")
	}
	s.record(ctx, actor, model.ActionDelete, c.ID)
	return nil
}

func (s *categoryService) find(ctx context.Context, id string) (*model.AssetCategory, error) {
	cid, err := parseID(id, "Asset Category")
	if err != nil {
		return nil, err
	}
	c, err := s.repo.FindByID(ctx, cid)
	if err != nil {
		return nil, notFoundOr(err, "Asset Category", "get category")
	}
	return c, nil
}

func (s *categoryService) ensureUnique(ctx context.Context, name string, excludeID uuid.UUID) error {
	if name == "" {
		return apperr.ValidationFields("Category name is required", map[string]string{"name": "required"})
	}
	taken, err := s.repo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return notFoundOr(err, "Asset Category", "check category name")
	}
	if taken {
		return apperr.ValidationFields("Category name already exists", map[string]string{"name": "already exists"})
	}
	return nil
}

func (s *categoryService) record(ctx context.Context, actor authz.Caller, action string, id uuid.UUID) {
	s.audit.Record(ctx, AuditEntry{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   model.EntityCategory,
		EntityID: id.String(),
		ClientIP: ClientIPFrom(ctx),
	})
}
