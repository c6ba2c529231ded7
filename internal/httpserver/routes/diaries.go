package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/untold/internal/httpserver/deps"
	"github.com/MrSnakeDoc/untold/internal/httpserver/handlers"
)

func init() { Register("api", registerDiaries) }

func registerDiaries(r chi.Router, d deps.Deps) {
	r.Route("/api", func(api chi.Router) {
		if d.APILimit != nil {
			api.Use(d.APILimit)
		}

		api.Post("/diaries", handlers.OpenDiary(d))
		api.Get("/users/{userID}/diaries", handlers.ListDiaries(d))

		api.Route("/diaries/{diaryID}", func(dr chi.Router) {
			dr.Get("/", handlers.GetDiary(d))
			dr.Post("/cards", handlers.AddCard(d))
			dr.Delete("/cards/{cardID}", handlers.DeleteCard(d))
			dr.Post("/suggest", handlers.Suggest(d))
			dr.Post("/moves", handlers.MoveCard(d))
			dr.Get("/layout", handlers.GetLayout(d))
			dr.Get("/reward", handlers.GetReward(d))
			dr.Post("/finalize", handlers.Finalize(d))
		})

		api.Get("/learning/status", handlers.LearningStatus(d))
		api.Post("/learning/batch-train", handlers.BatchTrain(d))
	})
}
