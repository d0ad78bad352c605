package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/camden-git/mediasysfaces/media"
	"github.com/camden-git/mediasysfaces/permissions"
	"github.com/camden-git/mediasysfaces/realtime"
	"github.com/camden-git/mediasysfaces/repository"
	"github.com/camden-git/mediasysfaces/services"
)

// RouterDeps is everything the HTTP surface needs. Hub and Queue may be nil.
type RouterDeps struct {
	Users      repository.UserRepository
	Roles      repository.RoleRepository
	Images     repository.ImageRepositoryInterface
	Thumbnails repository.ThumbnailRepositoryInterface

	Processor *media.Processor
	Queue     ImageQueue
	Detector  services.FileDetector
	Hub       *realtime.Hub

	FaceTags    *services.FaceTagService
	People      *services.PersonService
	Suggestions *services.SuggestionService
	Setup       *services.SetupService

	JWTSecret        []byte
	JWTExpiration    time.Duration
	AllowedOrigins   []string
	ThumbnailsSubDir string
}

func NewRouter(d RouterDeps) http.Handler {
	authHandler := NewAuthHandler(d.Users, d.JWTSecret, d.JWTExpiration)
	setupHandler := NewSetupHandler(d.Setup)
	permissionsHandler := NewPermissionsHandler()
	adminUserHandler := NewAdminUserHandler(d.Users, d.Roles)
	imageHandler := &ImageHandler{
		Images:      d.Images,
		Thumbnails:  d.Thumbnails,
		Processor:   d.Processor,
		Queue:       d.Queue,
		Detector:    d.Detector,
		Suggestions: d.Suggestions,
	}
	personHandler := &PersonHandler{People: d.People, Suggestions: d.Suggestions}
	tagHandler := &FaceTagHandler{Tags: d.FaceTags, Hub: d.Hub}

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	// the websocket outlives the request timeout below
	if d.Hub != nil {
		r.Get("/ws", d.Hub.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/api", func(r chi.Router) {
			r.Post("/auth/login", authHandler.Login)
			r.Post("/setup/first-admin", setupHandler.CreateFirstAdmin)
			r.Get("/thumbnails/*", AssetServer(d.Processor.Store(), d.ThumbnailsSubDir))

			r.Group(func(r chi.Router) {
				r.Use(func(next http.Handler) http.Handler {
					return AuthMiddleware(d.Users, d.JWTSecret, next)
				})

				r.Post("/auth/logout", authHandler.Logout)
				r.Get("/auth/me", authHandler.CurrentUser)
				r.Get("/permissions", permissionsHandler.ListDefinedPermissions)
				r.Get("/permissions/keys", permissionsHandler.ListDefinedPermissionKeys)

				r.Route("/images", func(r chi.Router) {
					r.Get("/", imageHandler.ListImages)
					r.With(requirePermission(permissions.ImageUpload)).Post("/", imageHandler.Upload)
					r.Route("/{image_id}", func(r chi.Router) {
						r.Get("/", imageHandler.GetImage)
						r.With(requirePermission(permissions.ImageUpload)).Delete("/", imageHandler.DeleteImage)
						r.With(requirePermission(permissions.ImageDetect)).Post("/detect-faces", imageHandler.DetectFaces)
						r.With(requireAnyPermission(permissions.FaceTag, permissions.ImageDetect)).Post("/suggest-tags", imageHandler.SuggestTags)
						r.Get("/face-tags", tagHandler.ListForImage)
						r.With(requirePermission(permissions.FaceTag)).Post("/face-tags", tagHandler.Create)
						r.Get("/thumbnails", imageHandler.ListThumbnails)
						r.Get("/thumbnails/{alias}", imageHandler.ServeThumbnail)
					})
				})

				r.With(requirePermission(permissions.FaceTag)).Post("/apply-auto-tag", tagHandler.ApplySuggestion)

				r.Route("/face-tags/{tag_id}", func(r chi.Router) {
					r.Get("/", tagHandler.Get)
					r.Put("/", tagHandler.Update)
					r.Delete("/", tagHandler.Delete)
				})

				r.Route("/people", func(r chi.Router) {
					r.Get("/", personHandler.ListPeople)
					r.With(requireAnyPermission(permissions.FaceTag, permissions.PersonManage)).Post("/", personHandler.CreatePerson)
					r.Route("/{person_id}", func(r chi.Router) {
						r.Get("/", personHandler.GetPerson)
						r.Put("/", personHandler.UpdatePerson)
						r.Delete("/", personHandler.DeletePerson)
						r.With(requireAnyPermission(permissions.PersonManage, permissions.FaceReview)).Get("/matches", personHandler.FindMatches)
					})
				})

				r.Route("/admin", func(r chi.Router) {
					r.Group(func(r chi.Router) {
						r.Use(requirePermission(permissions.FaceReview))
						r.Get("/pending-tags", tagHandler.ListPending)
						r.Post("/face-tags/{tag_id}/approve", tagHandler.Approve)
						r.Post("/face-tags/{tag_id}/reject", tagHandler.Reject)
						r.Post("/bulk-approve-tags", tagHandler.BulkApprove)
					})
					r.Route("/users", func(r chi.Router) {
						r.Use(requirePermission(permissions.UserManage))
						r.Get("/", adminUserHandler.ListUsers)
						r.Post("/", adminUserHandler.CreateUser)
						r.Get("/{user_id}", adminUserHandler.GetUser)
						r.Put("/{user_id}/permissions", adminUserHandler.UpdatePermissions)
					})
				})
			})
		})
	})

	return r
}
