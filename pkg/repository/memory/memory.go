package memory

import (
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// ErrNotFound is returned when a record does not exist in the caller's scope
var ErrNotFound = model.ErrNotFound

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is an in-process repository for development and tests
type Memory struct {
	project  *projectRepository
	fragment *fragmentRepository
	chapter  *chapterRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		project:  newProjectRepository(),
		fragment: newFragmentRepository(),
		chapter:  newChapterRepository(),
	}
}

func (m *Memory) Project() interfaces.ProjectRepository {
	return m.project
}

func (m *Memory) Fragment() interfaces.FragmentRepository {
	return m.fragment
}

func (m *Memory) Chapter() interfaces.ChapterRepository {
	return m.chapter
}

func (m *Memory) Close() error {
	return nil
}
