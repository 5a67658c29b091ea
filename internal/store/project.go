package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yuanying/epubscribe/internal/model"
	"github.com/yuanying/epubscribe/internal/platform/logger"
)

var (
	ErrNotFound      = errors.New("project not found in store")
	ErrInvalidRecord = errors.New("stored project record is invalid")
)

// ProjectRecord is the persisted form of a project: the plain keyed record
// plus the owner id.
type ProjectRecord struct {
	ID        string         `gorm:"primaryKey;column:id" json:"id"`
	OwnerID   string         `gorm:"index;not null;column:owner_id" json:"ownerId"`
	Name      string         `gorm:"not null;column:name" json:"name"`
	Pages     datatypes.JSON `gorm:"column:pages" json:"pages"`
	Styles    datatypes.JSON `gorm:"column:styles" json:"styles"`
	Images    datatypes.JSON `gorm:"column:images" json:"images"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (ProjectRecord) TableName() string {
	return "project"
}

// ProjectRepo persists projects.
type ProjectRepo interface {
	SaveProject(ctx context.Context, p *model.Project, ownerID string) error
	GetProject(ctx context.Context, id string) (*model.Project, string, error)
	ListProjects(ctx context.Context, ownerID string) ([]*model.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open opens (creating if needed) a sqlite database and migrates the schema.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&ProjectRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &projectRepo{db: db, log: baseLog.With("repo", "ProjectRepo")}
}

// SaveProject upserts the full project record. Concurrent saves of the same
// project are last-writer-wins.
func (r *projectRepo) SaveProject(ctx context.Context, p *model.Project, ownerID string) error {
	rec, err := toRecord(p, ownerID)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner_id", "name", "pages", "styles", "images", "updated_at"}),
		}).
		Create(rec).Error
	if err != nil {
		return err
	}
	r.log.Debug("project saved", "project_id", p.ID, "pages", len(p.Pages))
	return nil
}

func (r *projectRepo) GetProject(ctx context.Context, id string) (*model.Project, string, error) {
	var rec ProjectRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, "", err
	}
	p, err := fromRecord(&rec)
	if err != nil {
		return nil, "", err
	}
	return p, rec.OwnerID, nil
}

func (r *projectRepo) ListProjects(ctx context.Context, ownerID string) ([]*model.Project, error) {
	var recs []ProjectRecord
	q := r.db.WithContext(ctx).Order("created_at ASC")
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Project, 0, len(recs))
	for i := range recs {
		p, err := fromRecord(&recs[i])
		if errors.Is(err, ErrInvalidRecord) {
			r.log.Warn("skipping invalid project record", "project_id", recs[i].ID, "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *projectRepo) DeleteProject(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&ProjectRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func toRecord(p *model.Project, ownerID string) (*ProjectRecord, error) {
	pages, err := json.Marshal(p.Pages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pages: %w", err)
	}
	styles, err := json.Marshal(p.Styles)
	if err != nil {
		return nil, fmt.Errorf("failed to encode styles: %w", err)
	}
	images, err := json.Marshal(p.Images)
	if err != nil {
		return nil, fmt.Errorf("failed to encode images: %w", err)
	}
	return &ProjectRecord{
		ID:      p.ID,
		OwnerID: ownerID,
		Name:    p.Name,
		Pages:   datatypes.JSON(pages),
		Styles:  datatypes.JSON(styles),
		Images:  datatypes.JSON(images),
	}, nil
}

// fromRecord decodes a stored record. A record without pages is rejected
// with ErrInvalidRecord, and the styles always come back holding exactly
// the model.StyleTags keys.
func fromRecord(rec *ProjectRecord) (*model.Project, error) {
	p := &model.Project{ID: rec.ID, Name: rec.Name}
	if len(rec.Pages) > 0 {
		if err := json.Unmarshal(rec.Pages, &p.Pages); err != nil {
			return nil, fmt.Errorf("failed to decode pages of %s: %w", rec.ID, err)
		}
	}
	pages := p.Pages[:0]
	for _, pg := range p.Pages {
		if pg != nil {
			pages = append(pages, pg)
		}
	}
	p.Pages = pages
	if len(p.Pages) == 0 {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRecord, rec.ID, model.ErrNoPages)
	}

	var styles map[string]model.StyleRule
	if len(rec.Styles) > 0 {
		if err := json.Unmarshal(rec.Styles, &styles); err != nil {
			return nil, fmt.Errorf("failed to decode styles of %s: %w", rec.ID, err)
		}
	}
	p.Styles = model.NormalizeStyles(styles)

	if len(rec.Images) > 0 {
		if err := json.Unmarshal(rec.Images, &p.Images); err != nil {
			return nil, fmt.Errorf("failed to decode images of %s: %w", rec.ID, err)
		}
	}
	if p.Images == nil {
		p.Images = []model.ImageResource{}
	}
	return p, nil
}
