// Package session holds the state of one editing session: the open projects,
// which project and page are active, and the undo history of the open page.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuanying/epubscribe/internal/history"
	"github.com/yuanying/epubscribe/internal/importer"
	"github.com/yuanying/epubscribe/internal/model"
	"github.com/yuanying/epubscribe/internal/platform/logger"
)

const StatusReady = "Ready."

var (
	// ErrNoActiveProject is returned by Save when nothing is open.
	ErrNoActiveProject = errors.New("no active project")
)

// Sink persists a full project record for an owner.
type Sink interface {
	SaveProject(ctx context.Context, p *model.Project, ownerID string) error
}

// Importer turns an EPUB blob into a project.
type Importer interface {
	Import(ctx context.Context, data []byte) (*importer.Result, error)
}

// Session is the single-owner controller for projects, the active
// selection and page history. It is not safe for concurrent use.
type Session struct {
	projects        []*model.Project
	activeProjectID string
	activePageID    string
	history         *history.History[string]
	status          string

	importer Importer
	log      *logger.Logger
}

// New creates an empty session. A nil importer uses a default pipeline.
func New(imp Importer, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	if imp == nil {
		imp = importer.NewPipeline(importer.Options{}, log)
	}
	return &Session{
		history:  history.New(""),
		status:   StatusReady,
		importer: imp,
		log:      log.With("component", "session"),
	}
}

// Status returns the last human-readable status message.
func (s *Session) Status() string { return s.status }

func (s *Session) setStatus(format string, args ...any) {
	s.status = fmt.Sprintf(format, args...)
}

// reject records a refused operation and reports false.
func (s *Session) reject(err error) bool {
	s.status = err.Error()
	s.log.Debug("operation rejected", "error", err)
	return false
}

// Projects returns the session's projects in creation order.
func (s *Session) Projects() []*model.Project { return s.projects }

// ActiveProject returns the active project, or nil.
func (s *Session) ActiveProject() *model.Project {
	p, _ := s.project(s.activeProjectID)
	return p
}

// ActivePage returns the page open for editing, or nil.
func (s *Session) ActivePage() *model.Page {
	p := s.ActiveProject()
	if p == nil {
		return nil
	}
	pg, _ := p.Page(s.activePageID)
	return pg
}

// History exposes the open page's history for inspection.
func (s *Session) History() *history.History[string] { return s.history }

func (s *Session) project(id string) (*model.Project, int) {
	for i, p := range s.projects {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// addProject appends p, activates it and opens its first page.
func (s *Session) addProject(p *model.Project) {
	s.projects = append(s.projects, p)
	s.activeProjectID = p.ID
	s.openPage(p.Pages[0])
}

// openPage makes pg the edited page and restarts history from its content.
func (s *Session) openPage(pg *model.Page) {
	s.activePageID = pg.ID
	s.history.Reset(pg.Content)
}

// CreateProject adds a new project and makes it active.
func (s *Session) CreateProject(name string) (*model.Project, bool) {
	p, err := model.NewProject(name)
	if err != nil {
		return nil, s.reject(err)
	}
	s.addProject(p)
	s.setStatus("Project %q created.", name)
	return p, true
}

// SelectProject activates a project and opens its first page.
func (s *Session) SelectProject(id string) bool {
	p, _ := s.project(id)
	if p == nil {
		return s.reject(fmt.Errorf("%w: %s", model.ErrProjectNotFound, id))
	}
	s.activeProjectID = p.ID
	s.openPage(p.Pages[0])
	s.setStatus("Project %q loaded.", p.Name)
	return true
}

// DeleteProject removes a project. The last project cannot be deleted.
func (s *Session) DeleteProject(id string) bool {
	p, i := s.project(id)
	if p == nil {
		return s.reject(fmt.Errorf("%w: %s", model.ErrProjectNotFound, id))
	}
	if len(s.projects) <= 1 {
		return s.reject(model.ErrLastProject)
	}
	s.projects = append(s.projects[:i], s.projects[i+1:]...)
	if s.activeProjectID == id {
		next := s.projects[0]
		s.activeProjectID = next.ID
		s.openPage(next.Pages[0])
	}
	s.setStatus("Project %q deleted.", p.Name)
	return true
}

func (s *Session) activeProjectOrReject() (*model.Project, bool) {
	p := s.ActiveProject()
	if p == nil {
		return nil, s.reject(model.ErrProjectNotFound)
	}
	return p, true
}

// AddPage appends a page to the active project and opens it.
func (s *Session) AddPage() (*model.Page, bool) {
	p, ok := s.activeProjectOrReject()
	if !ok {
		return nil, false
	}
	pg := p.AddPage()
	s.openPage(pg)
	s.setStatus("Page %q created.", pg.Name)
	return pg, true
}

// DeletePage removes a page of the active project. When the open page is
// deleted the first remaining page is opened.
func (s *Session) DeletePage(id string) bool {
	p, ok := s.activeProjectOrReject()
	if !ok {
		return false
	}
	pg, found := p.Page(id)
	if !found {
		return s.reject(fmt.Errorf("%w: %s", model.ErrPageNotFound, id))
	}
	if err := p.DeletePage(id); err != nil {
		return s.reject(err)
	}
	if s.activePageID == id {
		s.openPage(p.Pages[0])
	}
	s.setStatus("Page %q deleted.", pg.Name)
	return true
}

// RenamePage relabels a page of the active project.
func (s *Session) RenamePage(id, name string) bool {
	p, ok := s.activeProjectOrReject()
	if !ok {
		return false
	}
	if err := p.RenamePage(id, name); err != nil {
		return s.reject(err)
	}
	return true
}

// MovePage reorders the active project's pages.
func (s *Session) MovePage(from, to int) bool {
	p, ok := s.activeProjectOrReject()
	if !ok {
		return false
	}
	if err := p.MovePage(from, to); err != nil {
		return s.reject(err)
	}
	return true
}

// SelectPage opens a page of the active project for editing.
func (s *Session) SelectPage(id string) bool {
	p, ok := s.activeProjectOrReject()
	if !ok {
		return false
	}
	pg, found := p.Page(id)
	if !found {
		return s.reject(fmt.Errorf("%w: %s", model.ErrPageNotFound, id))
	}
	s.openPage(pg)
	return true
}

// EditContent records continuous input into the current history step.
func (s *Session) EditContent(content string) bool {
	return s.write(content, history.ModeAmend)
}

// CommitContent records content as a new undo step.
func (s *Session) CommitContent(content string) bool {
	return s.write(content, history.ModeCheckpoint)
}

func (s *Session) write(content string, mode history.Mode) bool {
	if s.ActivePage() == nil {
		return s.reject(model.ErrPageNotFound)
	}
	if !s.history.Write(content, mode) {
		return s.reject(fmt.Errorf("unknown history mode %s", mode))
	}
	s.syncPage()
	return true
}

// Undo steps the open page back one history step.
func (s *Session) Undo() bool {
	if !s.history.Undo() {
		return false
	}
	s.syncPage()
	return true
}

// Redo steps the open page forward one history step.
func (s *Session) Redo() bool {
	if !s.history.Redo() {
		return false
	}
	s.syncPage()
	return true
}

// syncPage mirrors the current history value into the open page.
func (s *Session) syncPage() {
	if pg := s.ActivePage(); pg != nil {
		pg.Content = s.history.Current()
	}
}

// SetStyle changes one style property of the active project and checkpoints
// the open page so the change is an undo boundary.
func (s *Session) SetStyle(tag, property, value string) bool {
	p, ok := s.activeProjectOrReject()
	if !ok {
		return false
	}
	if err := p.SetStyle(tag, property, value); err != nil {
		return s.reject(err)
	}
	if s.ActivePage() != nil {
		s.history.Checkpoint(s.history.Current())
	}
	return true
}

// ImportEPUB imports an archive and activates the resulting project. On
// failure nothing is added and the status message carries the reason.
func (s *Session) ImportEPUB(ctx context.Context, data []byte) (*importer.Result, error) {
	s.setStatus("Importing EPUB...")
	res, err := s.importer.Import(ctx, data)
	if err != nil {
		s.setStatus("Error importing EPUB: %v", err)
		s.log.Error("import failed", "error", err)
		return nil, err
	}
	s.addProject(res.Project)
	s.setStatus("EPUB %q imported with %d images.", res.Project.Name, len(res.Project.Images))
	return res, nil
}

// Save persists the active project through sink.
func (s *Session) Save(ctx context.Context, sink Sink, ownerID string) error {
	p := s.ActiveProject()
	if p == nil {
		s.status = ErrNoActiveProject.Error()
		return ErrNoActiveProject
	}
	s.setStatus("Saving project %q...", p.Name)
	if err := sink.SaveProject(ctx, p, ownerID); err != nil {
		s.setStatus("Error saving project %q.", p.Name)
		s.log.Error("save failed", "project_id", p.ID, "error", err)
		return fmt.Errorf("failed to save project: %w", err)
	}
	s.setStatus("Project %q saved.", p.Name)
	return nil
}

// Load adds previously persisted projects to the session without changing
// the active selection unless nothing is active yet.
func (s *Session) Load(projects ...*model.Project) {
	for _, p := range projects {
		if p == nil {
			continue
		}
		if len(p.Pages) == 0 {
			s.log.Warn("skipping project without pages", "project_id", p.ID)
			continue
		}
		if existing, _ := s.project(p.ID); existing != nil {
			continue
		}
		s.projects = append(s.projects, p)
	}
	if s.ActiveProject() == nil && len(s.projects) > 0 {
		s.activeProjectID = s.projects[0].ID
		s.openPage(s.projects[0].Pages[0])
	}
}
