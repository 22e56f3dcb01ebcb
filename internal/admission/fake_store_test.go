package admission

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/enrollment-backend/internal/model"
	"github.com/stemsi/enrollment-backend/internal/port"
)

// fakeStore is an in-memory store whose commits are conditional on the
// course version, like the real backends.
type fakeStore struct {
	mu       sync.Mutex
	students map[int]bool
	courses  map[int]*model.Course
	regs     map[uuid.UUID]model.Registration

	commits       int
	courseFetches int

	// staleCommits forces the next N commits to report a stale version; -1 forces all.
	staleCommits int
	studentErr   error
	commitErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		students: make(map[int]bool),
		courses:  make(map[int]*model.Course),
		regs:     make(map[uuid.UUID]model.Registration),
	}
}

func (f *fakeStore) addStudents(ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.students[id] = true
	}
}

func (f *fakeStore) addCourse(c model.Course) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.courses[c.ID] = &c
}

func (f *fakeStore) version(courseID int) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.courses[courseID].Version
}

func (f *fakeStore) count(courseID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countLocked(courseID)
}

func (f *fakeStore) commitCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits
}

func (f *fakeStore) countLocked(courseID int) int {
	n := 0
	for _, r := range f.regs {
		if r.CourseID == courseID {
			n++
		}
	}
	return n
}

func (f *fakeStore) StudentExists(_ context.Context, id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.studentErr != nil {
		return false, f.studentErr
	}
	return f.students[id], nil
}

func (f *fakeStore) FetchCourse(_ context.Context, id int) (*model.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.courseFetches++
	c, ok := f.courses[id]
	if !ok {
		return nil, port.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) CourseExists(_ context.Context, id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.courses[id]
	return ok, nil
}

func (f *fakeStore) CountRegistrations(_ context.Context, courseID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countLocked(courseID), nil
}

func (f *fakeStore) ExistsRegistration(_ context.Context, studentID, courseID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.regs {
		if r.StudentID == studentID && r.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) FetchRegistration(_ context.Context, id uuid.UUID) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[id]
	if !ok {
		return nil, port.ErrRecordNotFound
	}
	return &r, nil
}

func (f *fakeStore) CommitRegistration(_ context.Context, reg model.Registration, expected int64) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	if f.staleCommits != 0 {
		if f.staleCommits > 0 {
			f.staleCommits--
		}
		return nil, port.ErrStaleVersion
	}
	c, ok := f.courses[reg.CourseID]
	if !ok {
		return nil, port.ErrRecordNotFound
	}
	if c.Version != expected {
		return nil, port.ErrStaleVersion
	}
	for _, r := range f.regs {
		if r.StudentID == reg.StudentID && r.CourseID == reg.CourseID {
			return nil, port.ErrAlreadyExists
		}
	}
	c.Version++
	f.regs[reg.ID] = reg
	return &reg, nil
}

func (f *fakeStore) CommitCancellation(_ context.Context, reg model.Registration, expected int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	if f.staleCommits != 0 {
		if f.staleCommits > 0 {
			f.staleCommits--
		}
		return port.ErrStaleVersion
	}
	c, ok := f.courses[reg.CourseID]
	if !ok {
		return port.ErrRecordNotFound
	}
	if c.Version != expected {
		return port.ErrStaleVersion
	}
	if _, ok := f.regs[reg.ID]; !ok {
		return port.ErrRecordNotFound
	}
	c.Version++
	delete(f.regs, reg.ID)
	return nil
}
