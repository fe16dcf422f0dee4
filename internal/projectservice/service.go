// Package projectservice coordinates the document store, the file tree
// guard, the preview renderer and the change feed.
package projectservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/texflow/internal/apperr"
	"github.com/starford/texflow/internal/checksum"
	"github.com/starford/texflow/internal/filetree"
	"github.com/starford/texflow/internal/latex"
	"github.com/starford/texflow/internal/models"
	"github.com/starford/texflow/internal/sse"
	"github.com/starford/texflow/internal/store"
)

// StarterName is the file every new project starts with.
const StarterName = "main.tex"

// Notifier receives record change notifications.
type Notifier interface {
	PublishRecordEvent(kind, projectID, id string)
}

// NewRecord describes a file or folder to create.
type NewRecord struct {
	Name     string      `json:"name"`
	Kind     models.Kind `json:"kind"`
	ParentID string      `json:"parentId"`
	Content  string      `json:"content"`
}

// Service implements project and record operations on top of a RecordStore.
type Service struct {
	store    store.RecordStore
	notifier Notifier
	compiler *latex.Renderer
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the change-feed publisher.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithAuthorDefault sets the author used by Compile when \author is absent.
func WithAuthorDefault(author string) Option {
	return func(s *Service) { s.compiler = latex.NewRenderer(author) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a project service.
func New(st store.RecordStore, opts ...Option) *Service {
	s := &Service{
		store:    st,
		compiler: latex.NewRenderer(latex.DefaultAuthorCompile),
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lock serialises mutations within one project so that a guard check and
// the write it approves are never interleaved with another mutation.
func (s *Service) lock(projectID string) func() {
	s.mu.Lock()
	l, ok := s.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[projectID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) publish(kind, projectID, id string) {
	if s.notifier != nil {
		s.notifier.PublishRecordEvent(kind, projectID, id)
	}
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

// --- Projects ---

// CreateProject creates a project for ownerID seeded with a starter main.tex.
func (s *Service) CreateProject(ctx context.Context, ownerID, name string) (models.Project, error) {
	name = strings.TrimSpace(name)
	if err := validation.Validate(name, validation.Required, validation.Length(1, 200)); err != nil {
		return models.Project{}, fmt.Errorf("project name: %v: %w", err, apperr.ErrInvalidInput)
	}
	if ownerID == "" {
		return models.Project{}, fmt.Errorf("owner: %w", apperr.ErrInvalidInput)
	}

	now := s.timestamp()
	p := models.Project{ID: uuid.NewString(), OwnerID: ownerID, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return models.Project{}, err
	}

	content := starterDocument(name)
	err := s.store.InsertRecord(ctx, models.Record{
		ID:         uuid.NewString(),
		ProjectID:  p.ID,
		Name:       StarterName,
		Kind:       models.KindFile,
		Content:    content,
		Checksum:   checksum.String(content),
		CreatedAt:  now,
		ModifiedAt: now,
	})
	if err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// ListProjects returns the projects owned by ownerID.
func (s *Service) ListProjects(ctx context.Context, ownerID string) ([]models.Project, error) {
	return s.store.ListProjects(ctx, ownerID)
}

// GetProject returns a project by ID.
func (s *Service) GetProject(ctx context.Context, projectID string) (models.Project, error) {
	return s.store.GetProject(ctx, projectID)
}

// Authorize returns apperr.ErrNotFound unless ownerID owns projectID. The
// same error is used for missing and foreign projects.
func (s *Service) Authorize(ctx context.Context, ownerID, projectID string) error {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if p.OwnerID != ownerID {
		return fmt.Errorf("project %s: %w", projectID, apperr.ErrNotFound)
	}
	return nil
}

// --- Records ---

// Records returns the live records of a project.
func (s *Service) Records(ctx context.Context, projectID string) ([]models.Record, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListRecords(ctx, projectID)
}

// Tree returns the file tree of a project, rebuilt from one snapshot.
func (s *Service) Tree(ctx context.Context, projectID string) ([]*filetree.Node, error) {
	records, err := s.Records(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return filetree.Build(records), nil
}

// GetRecord returns a record with its content.
func (s *Service) GetRecord(ctx context.Context, projectID, id string) (models.Record, error) {
	return s.store.GetRecord(ctx, projectID, id)
}

// CreateRecord adds a file or folder. The parent must be the root or an
// existing folder, and no sibling may carry the same name.
func (s *Service) CreateRecord(ctx context.Context, projectID string, in NewRecord) (models.Record, error) {
	if err := validateName(in.Name); err != nil {
		return models.Record{}, err
	}
	if !in.Kind.Valid() {
		return models.Record{}, fmt.Errorf("kind %q: %w", in.Kind, apperr.ErrInvalidInput)
	}
	if in.Kind == models.KindFolder && in.Content != "" {
		return models.Record{}, fmt.Errorf("folders have no content: %w", apperr.ErrInvalidInput)
	}

	unlock := s.lock(projectID)
	defer unlock()

	records, err := s.Records(ctx, projectID)
	if err != nil {
		return models.Record{}, err
	}
	if err := checkParent(records, in.ParentID); err != nil {
		return models.Record{}, err
	}
	if err := checkSiblingName(records, in.ParentID, in.Name, ""); err != nil {
		return models.Record{}, err
	}

	now := s.timestamp()
	r := models.Record{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		Name:       in.Name,
		Kind:       in.Kind,
		ParentID:   in.ParentID,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if r.Kind == models.KindFile {
		r.Content = in.Content
		r.Checksum = checksum.String(in.Content)
	}
	if err := s.store.InsertRecord(ctx, r); err != nil {
		return models.Record{}, err
	}
	s.publish(sse.KindCreated, projectID, r.ID)
	return r, nil
}

// UpdateContent replaces a file's content. A non-empty ifMatch must equal
// the current checksum or apperr.ErrConflict is returned.
func (s *Service) UpdateContent(ctx context.Context, projectID, id, content, ifMatch string) (models.Record, error) {
	unlock := s.lock(projectID)
	defer unlock()

	r, err := s.store.GetRecord(ctx, projectID, id)
	if err != nil {
		return models.Record{}, err
	}
	if r.IsFolder() {
		return models.Record{}, fmt.Errorf("record %s is a folder: %w", id, apperr.ErrInvalidInput)
	}
	if ifMatch != "" && ifMatch != r.Checksum {
		return models.Record{}, fmt.Errorf("record %s: %w", id, apperr.ErrConflict)
	}

	sum := checksum.String(content)
	if sum == r.Checksum {
		return r, nil
	}
	now := s.timestamp()
	if err := s.store.UpdateContent(ctx, projectID, id, content, sum, now); err != nil {
		return models.Record{}, err
	}
	r.Content, r.Checksum, r.ModifiedAt = content, sum, now
	s.publish(sse.KindUpdated, projectID, id)
	return r, nil
}

// Rename changes a record's name, keeping sibling names unique.
func (s *Service) Rename(ctx context.Context, projectID, id, name string) (models.Record, error) {
	if err := validateName(name); err != nil {
		return models.Record{}, err
	}

	unlock := s.lock(projectID)
	defer unlock()

	r, err := s.store.GetRecord(ctx, projectID, id)
	if err != nil {
		return models.Record{}, err
	}
	if r.Name == name {
		return r, nil
	}
	records, err := s.store.ListRecords(ctx, projectID)
	if err != nil {
		return models.Record{}, err
	}
	if err := checkSiblingName(records, r.ParentID, name, id); err != nil {
		return models.Record{}, err
	}

	now := s.timestamp()
	if err := s.store.RenameRecord(ctx, projectID, id, name, now); err != nil {
		return models.Record{}, err
	}
	r.Name, r.ModifiedAt = name, now
	s.publish(sse.KindUpdated, projectID, id)
	return r, nil
}

// Move re-parents a record under targetID (models.RootID for the project
// root). It reports false without writing when the record already sits
// there, and returns apperr.ErrInvalidMove when the move would create a
// cycle or the target is not a folder.
func (s *Service) Move(ctx context.Context, projectID, id, targetID string) (bool, error) {
	unlock := s.lock(projectID)
	defer unlock()

	records, err := s.Records(ctx, projectID)
	if err != nil {
		return false, err
	}
	source, ok := find(records, id)
	if !ok {
		return false, fmt.Errorf("record %s: %w", id, apperr.ErrNotFound)
	}
	if !filetree.CanMove(records, id, targetID) {
		return false, fmt.Errorf("move %s under %q: %w", id, targetID, apperr.ErrInvalidMove)
	}
	if filetree.IsNoop(records, id, targetID) {
		return false, nil
	}
	if err := checkSiblingName(records, targetID, source.Name, id); err != nil {
		return false, err
	}

	if err := s.store.MoveRecord(ctx, projectID, id, targetID, s.timestamp()); err != nil {
		return false, err
	}
	s.publish(sse.KindMoved, projectID, id)
	return true, nil
}

// Delete soft-deletes a record; deleting a folder takes its whole subtree
// with it in one transaction.
func (s *Service) Delete(ctx context.Context, projectID, id string) error {
	unlock := s.lock(projectID)
	defer unlock()

	records, err := s.Records(ctx, projectID)
	if err != nil {
		return err
	}
	if _, ok := find(records, id); !ok {
		return fmt.Errorf("record %s: %w", id, apperr.ErrNotFound)
	}

	ids := []string{id}
	for d := range filetree.Descendants(records, id) {
		ids = append(ids, d)
	}
	if err := s.store.SoftDelete(ctx, projectID, ids, s.timestamp()); err != nil {
		return err
	}
	for _, d := range ids {
		s.publish(sse.KindDeleted, projectID, d)
	}
	return nil
}

// --- Preview ---

// Preview renders a stored file with editor-mode metadata defaults.
func (s *Service) Preview(ctx context.Context, projectID, id string) (string, error) {
	r, err := s.store.GetRecord(ctx, projectID, id)
	if err != nil {
		return "", err
	}
	if r.IsFolder() {
		return "", fmt.Errorf("record %s is a folder: %w", id, apperr.ErrInvalidInput)
	}
	return latex.Preview(r.Content), nil
}

// Compile renders source the way the compile endpoint does.
func (s *Service) Compile(source string) string {
	return s.compiler.Render(source)
}

// Ready reports whether the store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// --- helpers ---

func validateName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, 255),
		validation.By(func(v any) error {
			n, _ := v.(string)
			if strings.ContainsAny(n, `/\`) || n == "." || n == ".." || strings.TrimSpace(n) != n {
				return errors.New("must be a plain file name")
			}
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("name %q: %v: %w", name, err, apperr.ErrInvalidInput)
	}
	return nil
}

func find(records []models.Record, id string) (models.Record, bool) {
	for _, r := range records {
		if r.ID == id {
			return r, true
		}
	}
	return models.Record{}, false
}

func checkParent(records []models.Record, parentID string) error {
	if parentID == models.RootID {
		return nil
	}
	p, ok := find(records, parentID)
	if !ok || !p.IsFolder() {
		return fmt.Errorf("parent %s is not a folder: %w", parentID, apperr.ErrInvalidInput)
	}
	return nil
}

func checkSiblingName(records []models.Record, parentID, name, selfID string) error {
	for _, r := range records {
		if r.ParentID == parentID && r.Name == name && r.ID != selfID {
			return fmt.Errorf("%q: %w", name, apperr.ErrAlreadyExists)
		}
	}
	return nil
}

func starterDocument(title string) string {
	return `\documentclass{article}
\title{` + title + `}
\date{\today}

\begin{document}
\maketitle

\section{Introduction}
Start writing here.

\end{document}
`
}
