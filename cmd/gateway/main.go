package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/smart-exam/smartexam/internal/api/http"
	"github.com/smart-exam/smartexam/internal/auth"
	authmw "github.com/smart-exam/smartexam/internal/auth/middleware"
	"github.com/smart-exam/smartexam/internal/config"
	"github.com/smart-exam/smartexam/internal/db"
	"github.com/smart-exam/smartexam/internal/exam"
	"github.com/smart-exam/smartexam/internal/grading"
	"github.com/smart-exam/smartexam/internal/rbac"
	"github.com/smart-exam/smartexam/internal/session"
	"github.com/smart-exam/smartexam/internal/storage"
	syncx "github.com/smart-exam/smartexam/internal/sync"
)

func main() {
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	if err := auth.EnsureAdmin(ctx, dbh, cfg); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	store := exam.NewSQLStore(dbh)
	sessions := session.NewSQLStore(dbh)
	events := syncx.NewEventRepo(dbh)
	svc := exam.NewService(store, sessions, grading.NewDefaultGrader(), events)

	authSvc := authmw.NewAuthService(cfg.AuthSecret)

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public auth surface
	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	r.Post("/auth/register", auth.RegisterTeacherHandler(dbh))
	r.Post("/auth/student", auth.StudentLoginHandler(authSvc, cfg))

	// Protected API (JWT → role in context, staff roles re-read from DB → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(authSvc))
		pr.Use(authmw.AttachRoleFromDB(dbh))

		// Exam delivery
		pr.With(rbac.Require("exam:list")).
			Get("/exams", api.ListExamsHandler(store))
		pr.With(rbac.Require("exam:start")).
			Post("/exams/{examID}/start", api.StartExamHandler(svc))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/submit", api.SubmitExamHandler(svc))

		// Authoring
		pr.With(rbac.Require("exam:create")).
			Post("/exams", api.CreateExamHandler(store))
		pr.With(rbac.Require("exam:delete")).
			Delete("/exams/{examID}", api.DeleteExamHandler(store, events))
		pr.With(rbac.Require("question:create")).
			Post("/exams/{examID}/questions", api.AddQuestionHandler(store))
		pr.With(rbac.Require("question:create")).
			Get("/exams/{examID}/questions", api.ListQuestionsHandler(store))
		pr.With(rbac.Require("question:import")).
			Post("/exams/{examID}/questions/import", api.ImportQuestionsHandler(store))
		pr.With(rbac.Require("question:delete")).
			Delete("/questions/{questionID}", api.DeleteQuestionHandler(store))

		// Results
		pr.With(rbac.Require("attempt:view")).
			Get("/attempts", api.ListAttemptsHandler(store))
		pr.With(rbac.Require("analytics:view")).
			Get("/analytics/summary", api.AnalyticsHandler(store))
		pr.With(rbac.Require("analytics:view")).
			Get("/analytics/events", api.EventsHandler(events))

		// Grade levels (admin)
		pr.With(rbac.RequireAny("grades:manage", "exam:create")).
			Get("/grades", api.ListGradesHandler(dbh))
		pr.With(rbac.Require("grades:manage")).
			Post("/grades", api.AddGradeHandler(dbh))
		pr.With(rbac.Require("grades:manage")).
			Post("/grades/{gradeID}", api.RenameGradeHandler(dbh))
		pr.With(rbac.Require("grades:manage")).
			Delete("/grades/{gradeID}", api.DeleteGradeHandler(dbh))

		// User management (admin)
		pr.With(rbac.Require("users:manage")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("users:manage")).
			Post("/users/{userID}/approve", api.ApproveUserHandler(dbh))
		pr.With(rbac.Require("users:manage")).
			Post("/users/{userID}/role", api.ChangeRoleHandler(dbh))
		pr.With(rbac.Require("users:manage")).
			Post("/users/{userID}/reset-password", api.ResetPasswordHandler(dbh))
		pr.With(rbac.Require("users:manage")).
			Delete("/users/{userID}", api.DeleteUserHandler(dbh))

		// Question images
		pr.Route("/assets", func(ar chi.Router) {
			ar.With(rbac.Require("assets:upload")).Post("/", api.UploadAssetHandler(bs))
			ar.With(rbac.Require("exam:list")).Get("/*", api.GetAssetHandler(bs))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
