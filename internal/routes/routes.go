package routes

import (
	"context"
	"net/http"

	"github.com/AnshRaj112/buildlog-backend/internal/handlers"
	"github.com/AnshRaj112/buildlog-backend/internal/middleware"
	"github.com/AnshRaj112/buildlog-backend/internal/services"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Services are the dependencies the HTTP layer is built from.
type Services struct {
	Sessions *services.SessionIssuer
	Notifier services.Notifier
	Auth     *services.AuthService
	Users    *services.UserService
	Follows  *services.FollowService
	Votes    *services.VoteService
	Posts    *services.PostService
	Projects *services.ProjectService
	Stories  *services.StoryService
	Chats    *services.ChatService
}

type Options struct {
	AllowedOrigins []string
	Production     bool
	// AllowedHost enables the production Host check when set.
	AllowedHost    string
	UploadDir      string
	MaxUploadBytes int64
	// Redis enables the shared per-IP window limiter outside production.
	Redis *redis.Client
}

// NewRouter builds the API. Limiter cleanup goroutines stop when ctx is done.
func NewRouter(ctx context.Context, svc Services, opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(opts.AllowedOrigins))

	// Production: SecurityHeaders, HostCheck, per-IP and auth-route limits.
	// Elsewhere: the Redis window limiter when Redis is available.
	if opts.Production {
		for _, mw := range middleware.ProductionSecurity(ctx, opts.AllowedHost) {
			r.Use(mw)
		}
	} else if opts.Redis != nil {
		r.Use(middleware.NewRedisRateLimiter(opts.Redis).Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	if opts.UploadDir != "" {
		r.With(middleware.UploadHeaders).Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadDir))))
	}

	uploads := handlers.Uploads{MaxBytes: opts.MaxUploadBytes}
	authH := handlers.NewAuthHandler(svc.Auth)
	userH := handlers.NewUserHandler(svc.Users, svc.Follows, uploads)
	projectH := handlers.NewProjectHandler(svc.Projects, uploads)
	postH := handlers.NewPostHandler(svc.Posts, svc.Votes, uploads)
	storyH := handlers.NewStoryHandler(svc.Stories, uploads)
	chatH := handlers.NewChatHandler(svc.Chats)
	realtimeH := handlers.NewRealtimeHandler(svc.Notifier, svc.Sessions, opts.AllowedOrigins)

	authenticate := middleware.Authenticate(svc.Sessions)
	optional := middleware.OptionalAuth(svc.Sessions)

	// Message history and sends: 30/min per user, burst 20.
	messageLimit := middleware.NewKeyedLimiter(rate.Limit(0.5), 20)
	go messageLimit.Run(ctx)

	r.Get("/ws", realtimeH.Serve)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authH.Signup)
			r.Post("/verify-otp", authH.VerifyOTP)
			r.Post("/resend-otp", authH.ResendOTP)
			r.Post("/login", authH.Login)
			r.With(authenticate).Get("/me", authH.Me)
			r.With(authenticate).Get("/activity", authH.Activity)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/{user}", userH.Profile)
			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Put("/{user}", userH.Update)
				r.Post("/avatar", userH.UploadAvatar)
				r.Post("/follow/{id}", userH.ToggleFollow)
			})
		})

		r.Route("/projects", func(r chi.Router) {
			r.With(optional).Get("/user/{username}", projectH.ByUser)
			r.With(optional).Get("/{id}", projectH.Get)
			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Post("/", projectH.Create)
				r.Get("/my", projectH.Mine)
				r.Put("/{id}", projectH.Update)
				r.Delete("/{id}", projectH.Delete)
			})
		})

		r.Route("/posts", func(r chi.Router) {
			r.With(optional).Get("/", postH.Feed)
			r.Get("/{id}/comments", postH.Comments)
			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Post("/", postH.Create)
				r.Post("/{id}/comment", postH.AddComment)
				r.Post("/{id}/upvote", postH.Upvote)
				r.Post("/{id}/downvote", postH.Downvote)
				r.Delete("/{id}", postH.Delete)
			})
		})

		r.Route("/stories", func(r chi.Router) {
			r.Get("/", storyH.Active)
			r.With(authenticate).Post("/", storyH.Create)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/chats", chatH.List)
			r.Get("/chats/{userId}", chatH.Open)

			r.Group(func(r chi.Router) {
				r.Use(messageLimit.Limit(middleware.ByUser, "Too many chat requests. Please slow down."))
				r.Get("/messages/{chatId}", chatH.Messages)
				r.Post("/messages", chatH.Send)
			})
		})
	})

	return r
}
