package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/smarttest/smarttest-backend/internal/config"
	"github.com/smarttest/smarttest-backend/internal/database"
	"github.com/smarttest/smarttest-backend/internal/logger"
	"github.com/smarttest/smarttest-backend/internal/model"
	"github.com/smarttest/smarttest-backend/internal/repository"
	"github.com/smarttest/smarttest-backend/internal/service"
)

var names = []string{
	"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
	"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
	"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
	"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
	"Rafi Ahmad", "Siska Saraswati", "Toni Setiawan", "Umi Kalsum", "Vina Panduwinata",
	"Wahyu Hidayat", "Xena Maharani", "Yudi Pratama", "Zaki Anwar", "Alifia Zahra",
}

var subjectNames = []string{"Matematika", "Bahasa Indonesia", "Fisika"}

func main() {
	var (
		schoolName   string
		className    string
		studentCount int
		objectiveN   int
		duration     time.Duration
	)
	flag.StringVar(&schoolName, "school", "SMA Demo", "School name to seed into")
	flag.StringVar(&className, "class", "XII", "Class name for students and subjects")
	flag.IntVar(&studentCount, "students", 30, "Number of students to create")
	flag.IntVar(&objectiveN, "questions", 40, "Objective questions per subject")
	flag.DurationVar(&duration, "duration", time.Hour, "Test duration per subject")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	schoolRepo := repository.NewSchoolRepository(pool)
	subjectRepo := repository.NewSubjectRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	bankRepo := repository.NewQuestionBankRepository(pool)
	bankCache := repository.NewCachedQuestionBank(bankRepo, rdb, cfg.QuestionCacheTTL, log)
	durationRepo := repository.NewDurationRepository(pool)

	fmt.Printf("=== Seeding demo data for %s / %s ===\n", schoolName, className)

	// ─── School ────────────────────────────────────────────────────────
	school, err := schoolRepo.GetByName(ctx, schoolName)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		school = &model.School{Name: schoolName}
		if err := schoolRepo.Create(ctx, school); err != nil {
			log.Fatal().Err(err).Msg("Failed to create school")
		}
		fmt.Printf("Created school with ID: %d\n", school.ID)
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to check existing school")
	default:
		fmt.Printf("Found existing school with ID: %d\n", school.ID)
	}

	// ─── Subjects, questions and durations ─────────────────────────────
	for _, name := range subjectNames {
		subject := &model.Subject{Name: name, ClassName: className, SchoolID: school.ID}
		if err := subjectRepo.Create(ctx, subject); err != nil {
			log.Fatal().Err(err).Str("subject", name).Msg("Failed to create subject")
		}

		existing, err := bankRepo.GetObjectiveQuestions(ctx, school.ID, className, subject.ID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read question bank")
		}
		if len(existing) == 0 {
			n, err := bankRepo.ImportObjective(ctx, objectiveQuestions(school.ID, className, subject.ID, objectiveN))
			if err != nil {
				log.Fatal().Err(err).Str("subject", name).Msg("Failed to import objective questions")
			}
			m, err := bankRepo.ImportSubjective(ctx, subjectiveQuestions(school.ID, className, subject.ID, name))
			if err != nil {
				log.Fatal().Err(err).Str("subject", name).Msg("Failed to import subjective questions")
			}
			if err := bankCache.Invalidate(ctx, school.ID, className, subject.ID); err != nil {
				log.Warn().Err(err).Str("subject", name).Msg("Failed to invalidate cached question pool")
			}
			fmt.Printf("Subject %q (ID %d): %d objective, %d subjective questions\n", name, subject.ID, n, m)
		} else {
			fmt.Printf("Subject %q (ID %d) already has %d questions, skipping import\n", name, subject.ID, len(existing))
		}

		if err := durationRepo.Set(ctx, &model.TestDuration{
			SchoolID:        school.ID,
			ClassName:       className,
			SubjectID:       subject.ID,
			DurationSeconds: int(duration.Seconds()),
		}); err != nil {
			log.Fatal().Err(err).Msg("Failed to set test duration")
		}
	}

	// ─── Students ──────────────────────────────────────────────────────
	created := 0
	for i := 0; i < studentCount; i++ {
		student := &model.Student{
			AccessCode: service.NormalizeAccessCode(fmt.Sprintf("%s%03d", className, i+1)),
			Name:       names[i%len(names)],
			ClassName:  className,
			SchoolID:   school.ID,
		}
		if i >= len(names) {
			student.Name += " " + strconv.Itoa(i/len(names)+1)
		}

		err := studentRepo.Create(ctx, student)
		if errors.Is(err, repository.ErrDuplicateAccessCode) {
			continue
		}
		if err != nil {
			fmt.Printf("Error creating student %s (%s): %v\n", student.Name, student.AccessCode, err)
			continue
		}
		created++
		if created%10 == 0 {
			fmt.Printf("Created %d students...\n", created)
		}
	}

	fmt.Printf("\nSeed completed! Added %d/%d students to school %d.\n", created, studentCount, school.ID)
}

func objectiveQuestions(schoolID int64, className string, subjectID int64, n int) []model.Question {
	qs := make([]model.Question, 0, n)
	for i := 1; i <= n; i++ {
		a, b := i+2, (i*7)%11+1
		sum := a + b
		qs = append(qs, model.Question{
			ClassName: className,
			SubjectID: subjectID,
			SchoolID:  schoolID,
			Text:      fmt.Sprintf("Berapakah hasil dari %d + %d?", a, b),
			Options: []string{
				strconv.Itoa(sum - 1),
				strconv.Itoa(sum),
				strconv.Itoa(sum + 1),
				strconv.Itoa(sum + 2),
			},
			Answer: strconv.Itoa(sum),
		})
	}
	return qs
}

func subjectiveQuestions(schoolID int64, className string, subjectID int64, subject string) []model.SubjectiveQuestion {
	prompts := []struct {
		text  string
		marks int
	}{
		{"Jelaskan konsep dasar %s yang paling kamu kuasai.", 10},
		{"Berikan satu contoh penerapan %s dalam kehidupan sehari-hari.", 10},
		{"Tuliskan ringkasan materi %s semester ini.", 5},
	}
	qs := make([]model.SubjectiveQuestion, 0, len(prompts))
	for _, p := range prompts {
		qs = append(qs, model.SubjectiveQuestion{
			ClassName: className,
			SubjectID: subjectID,
			SchoolID:  schoolID,
			Text:      fmt.Sprintf(p.text, subject),
			Marks:     p.marks,
		})
	}
	return qs
}
