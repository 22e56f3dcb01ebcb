package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/stemsi/enrollment-backend/internal/admission"
	"github.com/stemsi/enrollment-backend/internal/config"
	"github.com/stemsi/enrollment-backend/internal/database"
	"github.com/stemsi/enrollment-backend/internal/logger"
	"github.com/stemsi/enrollment-backend/internal/model"
	"github.com/stemsi/enrollment-backend/internal/service"
)

var courseNames = []string{
	"Operating Systems", "Databases", "Computer Networks", "Compilers", "Algorithms",
	"Distributed Systems", "Computer Graphics", "Machine Learning", "Cryptography", "Software Testing",
}

var studentNames = []string{
	"Ivan Petrov", "Anna Smirnova", "Dmitry Volkov", "Elena Kuznetsova", "Sergey Popov",
	"Olga Sokolova", "Alexey Lebedev", "Maria Kozlova", "Nikolai Novikov", "Tatiana Morozova",
}

func main() {
	var (
		numStudents int
		numCourses  int
		capacity    int
	)
	flag.IntVar(&numStudents, "students", 50, "Number of students to create")
	flag.IntVar(&numCourses, "courses", 5, "Number of courses to create")
	flag.IntVar(&capacity, "capacity", 20, "Seats per course")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	loc, _ := cfg.Location()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	backend, err := database.OpenBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer backend.Close()

	controller := admission.NewController(backend.Students, backend.Courses, backend.Registrations,
		admission.WithLocation(loc))
	courseService := service.NewCourseService(backend.Courses, backend.Registrations, controller)
	studentService := service.NewStudentService(backend.Students)

	fmt.Printf("=== Seeding %d Courses ===\n", numCourses)

	// Windows are staggered so the catalog has open, pending and closed courses.
	now := controller.Now().Truncate(time.Hour)
	for i := 0; i < numCourses; i++ {
		opens := now.Add(time.Duration(i-1) * 24 * time.Hour)
		name := courseNames[i%len(courseNames)]
		if i >= len(courseNames) {
			name = fmt.Sprintf("%s %d", name, i/len(courseNames)+1)
		}
		course, err := courseService.Create(ctx, model.CreateCourseRequest{
			Name:     name,
			Capacity: capacity,
			OpensAt:  opens.Format(time.RFC3339),
			ClosesAt: opens.Add(72 * time.Hour).Format(time.RFC3339),
		})
		if err != nil {
			log.Fatal().Err(err).Str("name", name).Msg("Failed to create course")
		}
		fmt.Printf("Created course %d %q (%s → %s)\n", course.ID, course.Name,
			course.OpensAt.Format("02.01.2006 15:04"), course.ClosesAt.Format("02.01.2006 15:04"))
	}

	fmt.Printf("\n=== Seeding %d Students ===\n", numStudents)

	successCount := 0
	for i := 0; i < numStudents; i++ {
		name := studentNames[i%len(studentNames)]
		email := fmt.Sprintf("%s.%d@example.com", strings.ToLower(strings.ReplaceAll(name, " ", ".")), i+1)

		_, err := studentService.Create(ctx, model.CreateStudentRequest{Name: name, Email: email})
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			fmt.Printf("Skipping %s: already exists\n", email)
		case err != nil:
			fmt.Printf("Error creating student %s: %v\n", email, err)
		default:
			successCount++
			if (i+1)%10 == 0 {
				fmt.Printf("Created %d students...\n", i+1)
			}
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d students.\n", successCount, numStudents)
}
