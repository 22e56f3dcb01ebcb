package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/enrollment-backend/internal/model"
	"github.com/stemsi/enrollment-backend/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "enrollment.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createCourse(t *testing.T, store *Store, capacity int) *model.Course {
	t.Helper()
	now := time.Now().UTC()
	c := &model.Course{
		Name:     "Operating Systems",
		Capacity: capacity,
		OpensAt:  now.Add(-time.Hour),
		ClosesAt: now.Add(time.Hour),
		TimeZone: "UTC",
	}
	require.NoError(t, store.CreateCourse(context.Background(), c))
	return c
}

func createStudent(t *testing.T, store *Store, email string) *model.Student {
	t.Helper()
	s := &model.Student{Name: "Student " + email, Email: email}
	require.NoError(t, store.CreateStudent(context.Background(), s))
	return s
}

func registration(studentID, courseID int) model.Registration {
	return model.Registration{ID: uuid.New(), StudentID: studentID, CourseID: courseID, RegisteredAt: time.Now()}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "  ")
	assert.Error(t, err)
}

func TestOpen_ReappliesMigrationsIdempotently(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "enrollment.db")
	first, err := Open(context.Background(), path)
	require.NoError(t, err)
	s := createStudent(t, first, "keep@example.com")
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.GetStudent(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep@example.com", got.Email)
}

func TestStudents(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	s := createStudent(t, store, "ann@example.com")
	assert.NotZero(t, s.ID)
	assert.False(t, s.CreatedAt.IsZero())

	err := store.CreateStudent(ctx, &model.Student{Name: "Other Ann", Email: "ann@example.com"})
	assert.ErrorIs(t, err, port.ErrAlreadyExists)

	ok, err := store.StudentExists(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.StudentExists(ctx, s.ID+100)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := store.ListStudents(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = store.GetStudent(ctx, 12345)
	assert.ErrorIs(t, err, port.ErrRecordNotFound)
	assert.ErrorIs(t, store.DeleteStudent(ctx, 12345), port.ErrRecordNotFound)
}

func TestCourses(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	c := createCourse(t, store, 3)
	got, err := store.FetchCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, 3, got.Capacity)
	assert.Zero(t, got.Version)
	assert.Equal(t, c.OpensAt.UnixMilli(), got.OpensAt.UnixMilli())

	_, err = store.FetchCourse(ctx, c.ID+1)
	assert.ErrorIs(t, err, port.ErrRecordNotFound)

	bad := &model.Course{Name: "Backwards", Capacity: 1, OpensAt: c.ClosesAt, ClosesAt: c.OpensAt, TimeZone: "UTC"}
	assert.Error(t, store.CreateCourse(ctx, bad))

	require.NoError(t, store.DeleteCourse(ctx, c.ID))
	exists, err := store.CourseExists(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.ErrorIs(t, store.DeleteCourse(ctx, c.ID), port.ErrRecordNotFound)
}

func TestCommitRegistration_VersionedAppend(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	s := createStudent(t, store, "bob@example.com")
	c := createCourse(t, store, 2)

	reg, err := store.CommitRegistration(ctx, registration(s.ID, c.ID), 0)
	require.NoError(t, err)

	_, err = store.CommitRegistration(ctx, registration(s.ID, c.ID), 0)
	assert.ErrorIs(t, err, port.ErrStaleVersion)

	_, err = store.CommitRegistration(ctx, registration(s.ID, c.ID), 1)
	assert.ErrorIs(t, err, port.ErrAlreadyExists)

	_, err = store.CommitRegistration(ctx, registration(s.ID+50, c.ID), 1)
	assert.ErrorIs(t, err, port.ErrRecordNotFound)

	got, err := store.FetchCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version, "rejected commits leave the version alone")

	n, err := store.CountRegistrations(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fetched, err := store.FetchRegistration(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, fetched.ID)
	assert.Equal(t, reg.RegisteredAt, fetched.RegisteredAt)

	details, err := store.ListRegistrations(ctx)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "Student bob@example.com", details[0].StudentName)
	assert.Equal(t, "Operating Systems", details[0].CourseName)

	summaries, err := store.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].OccupiedSeats)
}

func TestCommitRegistration_ConcurrentSameVersion(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	c := createCourse(t, store, 10)
	const n = 6
	ids := make([]int, n)
	for i := range ids {
		ids[i] = createStudent(t, store, uuid.NewString()+"@example.com").ID
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.CommitRegistration(ctx, registration(ids[i], c.ID), 0)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, port.ErrStaleVersion)
	}
	assert.Equal(t, 1, wins)
}

func TestCancellationAndDeletionBumpVersion(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	a := createStudent(t, store, "a@example.com")
	b := createStudent(t, store, "b@example.com")
	c := createCourse(t, store, 5)
	other := createCourse(t, store, 5)

	regA, err := store.CommitRegistration(ctx, registration(a.ID, c.ID), 0)
	require.NoError(t, err)
	_, err = store.CommitRegistration(ctx, registration(b.ID, c.ID), 1)
	require.NoError(t, err)

	assert.ErrorIs(t, store.CommitCancellation(ctx, *regA, 1), port.ErrStaleVersion)
	require.NoError(t, store.CommitCancellation(ctx, *regA, 2))
	assert.ErrorIs(t, store.CommitCancellation(ctx, *regA, 3), port.ErrRecordNotFound)

	_, err = store.FetchRegistration(ctx, regA.ID)
	assert.ErrorIs(t, err, port.ErrRecordNotFound)

	require.NoError(t, store.DeleteStudent(ctx, b.ID))

	got, err := store.FetchCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Version)
	n, err := store.CountRegistrations(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	untouched, err := store.FetchCourse(ctx, other.ID)
	require.NoError(t, err)
	assert.Zero(t, untouched.Version)
}

func TestDeleteCourseCascades(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	s := createStudent(t, store, "c@example.com")
	c := createCourse(t, store, 1)
	reg, err := store.CommitRegistration(ctx, registration(s.ID, c.ID), 0)
	require.NoError(t, err)

	require.NoError(t, store.DeleteCourse(ctx, c.ID))
	_, err = store.FetchRegistration(ctx, reg.ID)
	assert.ErrorIs(t, err, port.ErrRecordNotFound)

	_, err = store.CommitRegistration(ctx, registration(s.ID, c.ID), 1)
	assert.ErrorIs(t, err, port.ErrStaleVersion)
}

func TestEventLog(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, at := range []time.Time{now.Add(-72 * time.Hour), now.Add(-25 * time.Hour), now} {
		require.NoError(t, store.AppendEvent(ctx, model.RegistrationEvent{
			Type:           model.EventCancelled,
			RegistrationID: uuid.New(),
			StudentID:      1,
			CourseID:       7,
			Capacity:       3,
			OccurredAt:     at,
		}))
	}

	purged, err := store.PurgeEventsBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	n, err := store.CountEvents(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
