package service

import (
	"context"
	"errors"
	"strings"

	"github.com/funkostack/funkostore/internal/domain"
	"gorm.io/gorm"
)

// FunkoFilter narrows and pages funko listings.
type FunkoFilter struct {
	Query     string
	Category  string
	MinPrice  *float64
	MaxPrice  *float64
	SortField string
	SortOrder string
	Page      int
	PageSize  int
}

// FunkoRepository is the persistence port for funkos. Lookup methods
// return (nil, nil) when no row matches.
type FunkoRepository interface {
	List(ctx context.Context, filter FunkoFilter) ([]domain.Funko, int64, error)
	Latest(ctx context.Context, limit int) ([]domain.Funko, error)
	GetByID(ctx context.Context, id int64) (*domain.Funko, error)
	Create(ctx context.Context, funko *domain.Funko) error
	Update(ctx context.Context, funko *domain.Funko) error
	Delete(ctx context.Context, id int64) error
	CountByCategory(ctx context.Context, categoryID string) (int64, error)
}

// CategoryRepository is the persistence port for categories. Id and name
// are deliberately distinct lookup axes.
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.Category, error)
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	GetByName(ctx context.Context, name string) (*domain.Category, error)
	Create(ctx context.Context, category *domain.Category) error
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id string) error
}

// UserRepository is the persistence port for users. Soft-deleted rows are
// excluded from every lookup.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	SoftDelete(ctx context.Context, id int64) error
}

// GormFunkoRepository is the GORM implementation of FunkoRepository
type GormFunkoRepository struct {
	db *gorm.DB
}

func NewGormFunkoRepository(db *gorm.DB) *GormFunkoRepository {
	return &GormFunkoRepository{db: db}
}

// funkoSortColumns whitelists sortable columns to avoid SQL injection
var funkoSortColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"price":      "price",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func (r *GormFunkoRepository) List(ctx context.Context, filter FunkoFilter) ([]domain.Funko, int64, error) {
	db := r.db.WithContext(ctx).Model(&domain.Funko{})
	if q := strings.TrimSpace(filter.Query); q != "" {
		db = db.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	if filter.Category != "" {
		db = db.Joins("JOIN categories ON categories.id = funkos.category_id").
			Where("categories.name = ?", filter.Category)
	}
	if filter.MinPrice != nil {
		db = db.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		db = db.Where("price <= ?", *filter.MaxPrice)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortCol, ok := funkoSortColumns[filter.SortField]
	if !ok {
		sortCol = "id"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 500 {
		pageSize = 20
	}

	var rows []domain.Funko
	err := db.Preload("Category").
		Order("funkos." + sortCol + " " + order).
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *GormFunkoRepository) Latest(ctx context.Context, limit int) ([]domain.Funko, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var rows []domain.Funko
	err := r.db.WithContext(ctx).Preload("Category").
		Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *GormFunkoRepository) GetByID(ctx context.Context, id int64) (*domain.Funko, error) {
	var funko domain.Funko
	err := r.db.WithContext(ctx).Preload("Category").Where("id = ?", id).First(&funko).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &funko, nil
}

func (r *GormFunkoRepository) Create(ctx context.Context, funko *domain.Funko) error {
	return r.db.WithContext(ctx).Create(funko).Error
}

func (r *GormFunkoRepository) Update(ctx context.Context, funko *domain.Funko) error {
	return r.db.WithContext(ctx).Save(funko).Error
}

func (r *GormFunkoRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Funko{}).Error
}

func (r *GormFunkoRepository) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Funko{}).
		Where("category_id = ?", categoryID).Count(&count).Error
	return count, err
}

// GormCategoryRepository is the GORM implementation of CategoryRepository
type GormCategoryRepository struct {
	db *gorm.DB
}

func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

func (r *GormCategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	var rows []domain.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *GormCategoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	var category domain.Category
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *GormCategoryRepository) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	var category domain.Category
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *GormCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *GormCategoryRepository) Update(ctx context.Context, category *domain.Category) error {
	return r.db.WithContext(ctx).Save(category).Error
}

func (r *GormCategoryRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Category{}).Error
}

// GormUserRepository is the GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) active(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("is_deleted = ?", false)
}

func (r *GormUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	err := r.active(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	err := r.active(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.active(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *GormUserRepository) Update(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *GormUserRepository) SoftDelete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).Update("is_deleted", true).Error
}
