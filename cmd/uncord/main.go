package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/uncord-chat/uncord-server/internal/api"
	"github.com/uncord-chat/uncord-server/internal/attachment"
	"github.com/uncord-chat/uncord-server/internal/auth"
	"github.com/uncord-chat/uncord-server/internal/bootstrap"
	"github.com/uncord-chat/uncord-server/internal/bus"
	"github.com/uncord-chat/uncord-server/internal/call"
	"github.com/uncord-chat/uncord-server/internal/category"
	"github.com/uncord-chat/uncord-server/internal/channel"
	"github.com/uncord-chat/uncord-server/internal/config"
	"github.com/uncord-chat/uncord-server/internal/e2ee"
	"github.com/uncord-chat/uncord-server/internal/email"
	"github.com/uncord-chat/uncord-server/internal/filter"
	"github.com/uncord-chat/uncord-server/internal/gateway"
	"github.com/uncord-chat/uncord-server/internal/httputil"
	"github.com/uncord-chat/uncord-server/internal/invite"
	"github.com/uncord-chat/uncord-server/internal/media"
	"github.com/uncord-chat/uncord-server/internal/member"
	"github.com/uncord-chat/uncord-server/internal/message"
	"github.com/uncord-chat/uncord-server/internal/moderation"
	"github.com/uncord-chat/uncord-server/internal/permission"
	"github.com/uncord-chat/uncord-server/internal/postgres"
	"github.com/uncord-chat/uncord-server/internal/presence"
	"github.com/uncord-chat/uncord-server/internal/ratelimit"
	"github.com/uncord-chat/uncord-server/internal/role"
	servercfg "github.com/uncord-chat/uncord-server/internal/server"
	"github.com/uncord-chat/uncord-server/internal/user"
	"github.com/uncord-chat/uncord-server/internal/valkey"
	"github.com/uncord-chat/uncord-server/internal/wire"
)

// Build metadata injected via ldflags at compile time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// server holds the shared dependencies used by route handlers and middleware.
type server struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	rdb            *redis.Client
	userRepo       user.Repository
	authService    *auth.Service
	serverRepo     servercfg.Repository
	channelRepo    channel.Repository
	categoryRepo   category.Repository
	roleRepo       role.Repository
	memberRepo     member.Repository
	inviteRepo     invite.Repository
	messageRepo    message.Repository
	attachmentRepo attachment.Repository
	storage        media.StorageProvider
	permStore      permission.OverrideStore
	permReadStore  permission.Store
	permResolver   *permission.Resolver
	permPublisher  *permission.Publisher
	moderation     *moderation.Pipeline
	bus            *bus.Bus
	presence       *presence.Store
	gatewayHub     *gateway.Hub
	callService    *call.Service
	e2eeDevices    *e2ee.DeviceStore
	e2eePrekeys    *e2ee.PrekeyStore
	e2eeBackups    *e2ee.BackupStore
	e2eeTransfers  *e2ee.TransferStore
}

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.IsDevelopment() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Logger()
	}

	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", date).
		Str("env", cfg.ServerEnv).
		Msg("Starting Uncord Server")

	if cfg.CORSAllowOrigins == "*" {
		log.Warn().Msg("CORS_ALLOW_ORIGINS is set to a wildcard. Set an explicit origin when in production.")
	}

	ctx := context.Background()

	// Connect PostgreSQL
	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConn, cfg.DatabaseMinConn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	log.Info().Msg("PostgreSQL connected")

	// Run migrations
	if err := postgres.Migrate(cfg.DatabaseURL, log.Logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Msg("Database migrations complete")

	// Connect Valkey
	rdb, err := valkey.Connect(ctx, cfg.ValkeyURL, cfg.ValkeyDialTimeout)
	if err != nil {
		return fmt.Errorf("connect valkey: %w", err)
	}
	defer func() { _ = rdb.Close() }()
	log.Info().Msg("Valkey connected")

	// Check first-run and seed if needed
	firstRun, err := bootstrap.IsFirstRun(ctx, db)
	if err != nil {
		return fmt.Errorf("check first run: %w", err)
	}
	if firstRun {
		log.Info().Msg("First run detected, running initialization")
		if err := bootstrap.RunFirstInit(ctx, db, cfg); err != nil {
			return fmt.Errorf("first-run initialization: %w", err)
		}
		log.Info().Msg("First-run initialization complete")
	}

	// Initialise permission engine
	permStore := permission.NewPGStore(db)
	permCache := permission.NewValkeyCache(rdb)
	permResolver := permission.NewResolver(permStore, permCache, log.Logger)
	permPublisher := permission.NewPublisher(rdb)

	// Initialise user repository early because the background purge goroutine needs it.
	userRepo := user.NewPGRepository(db, log.Logger)

	// Start background services with a shared cancellable context.
	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()

	// The purge goroutine is started below after the attachment repository is initialised, because orphan attachment
	// cleanup needs access to the repo and storage provider.
	startPurgeGoroutine := func(attachRepo *attachment.PGRepository, storage media.StorageProvider) {
		go func() {
			purgeExpiredData(subCtx, userRepo, attachRepo, storage, cfg)

			ticker := time.NewTicker(cfg.DataCleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-subCtx.Done():
					return
				case <-ticker.C:
					purgeExpiredData(subCtx, userRepo, attachRepo, storage, cfg)
				}
			}
		}()
	}

	// Start permission cache invalidation subscriber with reconnection.
	permSub := permission.NewSubscriber(permCache, rdb, log.Logger)
	go runWithBackoff(subCtx, "permission-cache-subscriber", permSub.Run)

	// SMTP client for transactional email (verification, password reset, etc.)
	var emailSender auth.Sender
	if cfg.SMTPConfigured() {
		emailClient := email.NewClient(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
		if err := emailClient.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("SMTP connection test failed. Verification emails may not be delivered.")
		} else {
			log.Info().Str("host", cfg.SMTPHost).Int("port", cfg.SMTPPort).Msg("SMTP connection verified")
		}
		emailSender = emailClient
		if cfg.IsDevelopment() {
			log.Info().Msg("SMTP routed to Mailpit. View caught emails at http://localhost:8025")
		}
	} else {
		log.Warn().Msg("SMTP_HOST is not configured. Email verification will only work in development mode (token logged to console).")
	}

	// Initialise storage provider.
	var storage media.StorageProvider
	switch cfg.StorageBackend {
	case "local":
		storage = media.NewLocalStorage(cfg.StorageLocalPath, cfg.ServerURL)
		log.Info().Str("path", cfg.StorageLocalPath).Msg("Local file storage initialised")
	default:
		return fmt.Errorf("unsupported storage backend: %q", cfg.StorageBackend)
	}

	// Initialise remaining repositories and services
	serverRepo := servercfg.NewPGRepository(db, log.Logger)
	channelRepo := channel.NewPGRepository(db, log.Logger)
	categoryRepo := category.NewPGRepository(db, log.Logger)
	roleRepo := role.NewPGRepository(db, log.Logger)
	memberRepo := member.NewPGRepository(db, log.Logger)
	inviteRepo := invite.NewPGRepository(db, log.Logger)
	messageRepo := message.NewPGRepository(db, log.Logger)
	attachmentRepo := attachment.NewPGRepository(db, log.Logger)
	startPurgeGoroutine(attachmentRepo, storage)

	authService, err := auth.NewService(userRepo, rdb, cfg, emailSender, serverRepo, permPublisher, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create auth service")
	}

	// Initialise the content filter engine and moderation pipeline that guild-channel message ingress runs through.
	filterStore := filter.NewPGStore(db)
	filterCache := filter.NewCache(filterStore, log.Logger)
	moderationStore := moderation.NewStore(db, log.Logger)
	moderationPipeline := moderation.NewPipeline(filterCache, moderationStore, log.Logger)

	// Initialise the event bus, gateway authorizer, and frame rate limiter, then the WebSocket hub itself.
	eventBus := bus.NewBus(rdb, log.Logger)
	gatewayAuthorizer := gateway.NewPGAuthorizer(db, permResolver)
	frameLimiter := ratelimit.NewLimiter(rdb, ratelimit.DefaultCategoryConfigs())
	presenceStore := presence.NewStore(rdb)
	gatewayHub := gateway.NewHub(cfg, eventBus, gatewayAuthorizer, frameLimiter, presenceStore, log.Logger)

	// Call control and E2EE key store, both backed by Postgres.
	callStore := call.NewStore(db, log.Logger)
	callService := call.NewService(callStore, eventBus, log.Logger)
	e2eeDevices := e2ee.NewDeviceStore(db, log.Logger)
	e2eePrekeys := e2ee.NewPrekeyStore(db, log.Logger)
	e2eeBackups := e2ee.NewBackupStore(db, log.Logger)
	e2eeTransfers := e2ee.NewTransferStore(db, log.Logger)
	go e2eeTransfers.RunReaper(subCtx, 5*time.Minute)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:   "Uncord",
		BodyLimit: cfg.BodyLimitBytes(),
		// ErrorHandler catches errors returned by handlers that are not already mapped to structured API responses
		// (e.g. Fiber's built-in 404/405).
		ErrorHandler: func(c fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			message := "An internal error occurred"
			apiCode := wire.CodeInternal

			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
				message = fiberErr.Message
				apiCode = fiberStatusToAPICode(fiberErr.Code)
			} else {
				log.Error().Err(err).
					Str("method", c.Method()).
					Str("path", c.Path()).
					Msg("Unhandled error")
			}
			return httputil.Fail(c, status, apiCode, message)
		},
	})

	// Global middleware
	app.Use(requestid.New())
	if cfg.LogHealthRequests {
		app.Use(httputil.RequestLogger(log.Logger))
	} else {
		app.Use(httputil.RequestLogger(log.Logger, "/api/v1/health"))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Split(cfg.CORSAllowOrigins, ","),
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"X-Request-ID"},
	}))

	// Global API rate limiter
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitAPIRequests,
		Expiration: time.Duration(cfg.RateLimitAPIWindowSeconds) * time.Second,
	}))

	// Register routes
	srv := &server{
		cfg:            cfg,
		db:             db,
		rdb:            rdb,
		userRepo:       userRepo,
		serverRepo:     serverRepo,
		channelRepo:    channelRepo,
		categoryRepo:   categoryRepo,
		roleRepo:       roleRepo,
		memberRepo:     memberRepo,
		inviteRepo:     inviteRepo,
		messageRepo:    messageRepo,
		attachmentRepo: attachmentRepo,
		storage:        storage,
		authService:    authService,
		permStore:      permStore,
		permReadStore:  permStore,
		permResolver:   permResolver,
		permPublisher:  permPublisher,
		moderation:     moderationPipeline,
		bus:            eventBus,
		presence:       presenceStore,
		gatewayHub:     gatewayHub,
		callService:    callService,
		e2eeDevices:    e2eeDevices,
		e2eePrekeys:    e2eePrekeys,
		e2eeBackups:    e2eeBackups,
		e2eeTransfers:  e2eeTransfers,
	}
	srv.registerRoutes(app)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Shutting down server")
		gatewayHub.Shutdown()
		subCancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	// Listen
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	log.Info().Str("addr", addr).Msg("Server listening")

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	log.Debug().
		Uint64("alloc_mb", mem.Alloc/1024/1024).
		Uint64("sys_mb", mem.Sys/1024/1024).
		Uint64("heap_inuse_mb", mem.HeapInuse/1024/1024).
		Uint64("stack_inuse_mb", mem.StackInuse/1024/1024).
		Uint32("num_gc", mem.NumGC).
		Msg("Runtime memory stats")

	if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func (s *server) registerRoutes(app *fiber.App) {
	requireAuth := auth.RequireAuth(s.cfg.JWTSecret, s.cfg.ServerURL)
	requireVerified := auth.RequireVerifiedEmail(s.userRepo)
	requireActive := member.RequireActiveMember(s.memberRepo)

	health := api.NewHealthHandler(s.db, s.rdb)
	app.Get("/api/v1/health", health.Health)

	authHandler := api.NewAuthHandler(s.authService, log.Logger)

	// Auth routes with stricter rate limiting (public, no email/member checks)
	authGroup := app.Group("/api/v1/auth")
	authGroup.Use(limiter.New(limiter.Config{
		Max:        s.cfg.RateLimitAuthCount,
		Expiration: time.Duration(s.cfg.RateLimitAuthWindowSeconds) * time.Second,
	}))
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.Refresh)
	authGroup.Post("/verify-email", authHandler.VerifyEmail)
	authGroup.Post("/mfa/verify", authHandler.MFAVerify)
	authGroup.Post("/verify-password", requireAuth, authHandler.VerifyPassword)

	// User profile routes (authenticated + verified email, no member check required)
	userHandler := api.NewUserHandler(s.userRepo, s.authService, log.Logger)
	userGroup := app.Group("/api/v1/users", requireAuth, requireVerified)
	userGroup.Get("/@me", userHandler.GetMe)
	userGroup.Patch("/@me", userHandler.UpdateMe)
	userGroup.Delete("/@me", userHandler.DeleteMe)

	// MFA management routes (authenticated + verified email)
	mfaHandler := api.NewMFAHandler(s.authService, log.Logger)
	mfaGroup := userGroup.Group("/@me/mfa")
	mfaGroup.Post("/enable", mfaHandler.Enable)
	mfaGroup.Post("/confirm", mfaHandler.Confirm)
	mfaGroup.Post("/disable", mfaHandler.Disable)
	mfaGroup.Post("/recovery-codes", mfaHandler.RegenerateCodes)

	// Server config routes (authenticated + verified email)
	serverHandler := api.NewServerHandler(s.serverRepo, log.Logger)
	app.Get("/api/v1/server/info", serverHandler.GetPublicInfo)
	serverGroup := app.Group("/api/v1/server", requireAuth, requireVerified)
	serverGroup.Get("/", serverHandler.Get)
	serverGroup.Patch("/", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.ManageServer), serverHandler.Update)

	// Channel routes (server group: list is open to pending, create requires active)
	channelHandler := api.NewChannelHandler(s.channelRepo, s.memberRepo, s.permResolver, s.bus, s.cfg.MaxChannels, log.Logger)
	serverGroup.Get("/channels", channelHandler.ListChannels)
	serverGroup.Post("/channels", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.ManageChannels),
		channelHandler.CreateChannel)

	// Channel routes (standalone group: all routes require active membership)
	channelGroup := app.Group("/api/v1/channels", requireAuth, requireVerified, requireActive)
	channelGroup.Get("/:channelID",
		permission.RequirePermission(s.permResolver, wire.ViewChannels),
		channelHandler.GetChannel)
	channelGroup.Patch("/:channelID",
		permission.RequirePermission(s.permResolver, wire.ManageChannels),
		channelHandler.UpdateChannel)
	channelGroup.Delete("/:channelID",
		permission.RequirePermission(s.permResolver, wire.ManageChannels),
		channelHandler.DeleteChannel)

	// Permission override routes
	permHandler := api.NewPermissionHandler(s.permStore, s.permResolver, s.permPublisher, log.Logger)
	channelGroup.Put("/:channelID/overrides/:targetID",
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.ManageRoles),
		permHandler.SetOverride)
	channelGroup.Delete("/:channelID/overrides/:targetID",
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.ManageRoles),
		permHandler.DeleteOverride)
	channelGroup.Get("/:channelID/permissions/@me",
		permHandler.GetMyPermissions)

	// Attachment upload route (nested under channels, inherits active requirement)
	attachmentHandler := api.NewAttachmentHandler(
		s.attachmentRepo, s.storage, s.cfg.MaxUploadSizeBytes(), log.Logger)
	channelGroup.Post("/:channelID/attachments",
		limiter.New(limiter.Config{
			Max:        s.cfg.RateLimitUploadCount,
			Expiration: time.Duration(s.cfg.RateLimitUploadWindowSeconds) * time.Second,
		}),
		permission.RequirePermission(s.permResolver, wire.AttachFiles),
		attachmentHandler.Upload)

	// Message routes (nested under channels for list and create, inherits active requirement)
	messageHandler := api.NewMessageHandler(
		s.messageRepo, s.attachmentRepo, s.channelRepo, s.storage, s.permResolver, s.moderation, s.bus,
		s.cfg.MaxMessageLength, s.cfg.MaxAttachmentsPerMessage, log.Logger)
	channelGroup.Get("/:channelID/messages",
		permission.RequirePermission(s.permResolver, wire.ViewChannels|wire.ReadMessageHistory),
		messageHandler.ListMessages)
	channelGroup.Post("/:channelID/messages",
		permission.RequirePermission(s.permResolver, wire.SendMessages),
		messageHandler.CreateMessage)

	// Message routes (standalone for edit and delete, require active membership)
	messageGroup := app.Group("/api/v1/messages", requireAuth, requireVerified, requireActive)
	messageGroup.Patch("/:messageID", messageHandler.EditMessage)
	messageGroup.Delete("/:messageID", messageHandler.DeleteMessage)

	// Typing indicator routes (nested under channels, inherits active requirement)
	typingHandler := api.NewTypingHandler(s.presence, s.bus, log.Logger)
	channelGroup.Post("/:channelID/typing",
		permission.RequirePermission(s.permResolver, wire.SendMessages),
		typingHandler.StartTyping)
	channelGroup.Delete("/:channelID/typing",
		permission.RequirePermission(s.permResolver, wire.SendMessages),
		typingHandler.StopTyping)

	// Category routes (server group routes need per-route active, standalone group requires active)
	categoryHandler := api.NewCategoryHandler(s.categoryRepo, s.cfg.MaxCategories)
	serverGroup.Get("/categories", requireActive, categoryHandler.ListCategories)
	serverGroup.Post("/categories", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.ManageCategories),
		categoryHandler.CreateCategory)

	categoryGroup := app.Group("/api/v1/categories", requireAuth, requireVerified, requireActive)
	categoryGroup.Patch("/:categoryID",
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.ManageCategories),
		categoryHandler.UpdateCategory)
	categoryGroup.Delete("/:categoryID",
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.ManageCategories),
		categoryHandler.DeleteCategory)

	// Role routes (all require active membership)
	roleHandler := api.NewRoleHandler(s.roleRepo, s.permPublisher, s.bus, s.cfg.MaxRoles, log.Logger)
	serverGroup.Get("/roles", requireActive, roleHandler.ListRoles)
	serverGroup.Post("/roles", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.ManageRoles),
		roleHandler.CreateRole)
	serverGroup.Patch("/roles/:roleID", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.ManageRoles),
		roleHandler.UpdateRole)
	serverGroup.Delete("/roles/:roleID", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.ManageRoles),
		roleHandler.DeleteRole)

	// Invite management routes (under /api/v1/server, require active membership)
	inviteHandler := api.NewInviteHandler(s.inviteRepo, s.memberRepo, log.Logger)
	serverGroup.Post("/invites", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.CreateInvites),
		inviteHandler.CreateInvite)
	serverGroup.Get("/invites", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.ManageInvites),
		inviteHandler.ListInvites)

	// Invite action routes (under /api/v1/invites, authenticated + verified email)
	inviteGroup := app.Group("/api/v1/invites", requireAuth, requireVerified)
	inviteGroup.Delete("/:code", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.ManageInvites),
		inviteHandler.DeleteInvite)
	inviteGroup.Post("/:code/join", inviteHandler.JoinViaInvite)

	// Member routes (mixed: some require active, some do not)
	memberHandler := api.NewMemberHandler(s.memberRepo, s.roleRepo, s.permReadStore, s.permResolver, s.permPublisher, s.serverRepo, s.bus, log.Logger)
	memberGroup := serverGroup.Group("/members")
	memberGroup.Get("/", requireActive, memberHandler.ListMembers)
	memberGroup.Get("/@me", memberHandler.GetSelf)
	memberGroup.Patch("/@me", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.ChangeNicknames),
		memberHandler.UpdateSelf)
	memberGroup.Delete("/@me", memberHandler.Leave)
	memberGroup.Get("/:userID", requireActive, memberHandler.GetMember)
	memberGroup.Patch("/:userID", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.ManageNicknames),
		memberHandler.UpdateMember)
	memberGroup.Delete("/:userID", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.KickMembers),
		memberHandler.KickMember)
	memberGroup.Put("/:userID/timeout", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.TimeoutMembers),
		memberHandler.SetTimeout)
	memberGroup.Delete("/:userID/timeout", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.TimeoutMembers),
		memberHandler.ClearTimeout)
	memberGroup.Put("/:userID/roles/:roleID", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.AssignRoles),
		memberHandler.AssignRole)
	memberGroup.Delete("/:userID/roles/:roleID", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.AssignRoles),
		memberHandler.RemoveRole)

	// Ban routes (require active membership)
	banGroup := serverGroup.Group("/bans", requireActive,
		permission.RequireServerPermission(s.permResolver, s.serverRepo, wire.BanMembers))
	banGroup.Get("/", memberHandler.ListBans)
	banGroup.Put("/:userID", memberHandler.BanMember)
	banGroup.Delete("/:userID", memberHandler.UnbanMember)

	// Public media file serving (outside /api/v1/, no auth required). The UUID component of each storage key provides
	// sufficient entropy to prevent guessing. Directory traversal is prevented by Fiber's path parameter sanitisation.
	if _, ok := s.storage.(*media.LocalStorage); ok {
		app.Get("/media/*", func(c fiber.Ctx) error {
			key := c.Params("*")
			if key == "" || strings.Contains(key, "..") {
				return fiber.ErrNotFound
			}
			rc, err := s.storage.Get(c.Context(), key)
			if err != nil {
				return fiber.ErrNotFound
			}
			defer func() { _ = rc.Close() }()

			// Set a long cache header since attachment URLs include a unique UUID.
			c.Set("Cache-Control", "public, max-age=31536000, immutable")
			return c.SendStream(rc)
		})
	}

	// Call control routes (DM/group-DM ringing, accept/decline/leave). Calls ring on channels that are not
	// necessarily server memberships (DMs), so this group only requires a verified email, not requireActive.
	callHandler := api.NewCallHandler(s.callService, log.Logger)
	dmCallGroup := app.Group("/api/v1/channels", requireAuth, requireVerified)
	dmCallGroup.Post("/:channelID/calls", callHandler.Start)
	callGroup := app.Group("/api/v1/calls", requireAuth, requireVerified)
	callGroup.Post("/:callID/accept", callHandler.Accept)
	callGroup.Post("/:callID/decline", callHandler.Decline)
	callGroup.Post("/:callID/leave", callHandler.Leave)

	// E2EE key store routes: device registration, prekey publication/claim, encrypted backup, device transfer.
	e2eeHandler := api.NewE2EEHandler(s.e2eeDevices, s.e2eePrekeys, s.e2eeBackups, s.e2eeTransfers, log.Logger)
	meGroup := app.Group("/api/v1/users/@me/e2ee", requireAuth, requireVerified)
	meGroup.Post("/devices", e2eeHandler.RegisterDevice)
	meGroup.Get("/devices", e2eeHandler.ListDevices)
	meGroup.Delete("/devices/:deviceID", e2eeHandler.DeleteDevice)
	meGroup.Get("/backup", e2eeHandler.GetBackup)
	meGroup.Put("/backup", e2eeHandler.UpsertBackup)
	meGroup.Delete("/backup", e2eeHandler.DeleteBackup)
	meGroup.Post("/transfers", e2eeHandler.CreateTransfer)

	e2eeGroup := app.Group("/api/v1/e2ee", requireAuth, requireVerified)
	e2eeGroup.Post("/devices/:deviceID/prekeys", e2eeHandler.PublishPrekeys)
	e2eeGroup.Post("/devices/:deviceID/prekeys/claim", e2eeHandler.ClaimPrekey)
	e2eeGroup.Get("/transfers/:transferID", e2eeHandler.FetchTransfer)

	// Gateway WebSocket endpoint (unauthenticated; authentication happens inside the WebSocket via an auth frame, and
	// there is no session resume).
	gatewayHandler := api.NewGatewayHandler(s.gatewayHub)
	app.Get("/api/v1/gateway", gatewayHandler.Upgrade)

	// Catch-all handler returns 404 for any request that does not match a defined route. Fiber v3 treats app.Use()
	// middleware as route matches, so without this terminal handler the router considers unmatched requests "handled"
	// and returns the default 200 status with an empty body.
	app.Use(func(_ fiber.Ctx) error {
		return fiber.ErrNotFound
	})
}

// purgeExpiredData deletes stale login attempts, deletion tombstones, and orphaned attachments. Each call logs the
// outcome so operators can monitor retention enforcement.
func purgeExpiredData(ctx context.Context, repo *user.PGRepository, attachRepo *attachment.PGRepository, storage media.StorageProvider, cfg *config.Config) {
	deleted, err := repo.PurgeLoginAttempts(ctx, time.Now().Add(-cfg.LoginAttemptRetention))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to purge expired login attempts")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Dur("retention", cfg.LoginAttemptRetention).Msg("Purged expired login attempts")
	}

	if cfg.DeletionTombstoneRetention > 0 {
		deleted, err := repo.PurgeTombstones(ctx, time.Now().Add(-cfg.DeletionTombstoneRetention))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to purge expired deletion tombstones")
		} else if deleted > 0 {
			log.Info().Int64("deleted", deleted).Dur("retention", cfg.DeletionTombstoneRetention).
				Msg("Purged expired deletion tombstones")
		}
	}

	// Purge orphaned attachments (uploaded but never linked to a message).
	orphanKeys, err := attachRepo.PurgeOrphans(ctx, time.Now().Add(-cfg.AttachmentOrphanTTL))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to purge orphaned attachments")
	} else if len(orphanKeys) > 0 {
		for _, key := range orphanKeys {
			if delErr := storage.Delete(ctx, key); delErr != nil {
				log.Warn().Err(delErr).Str("key", key).Msg("Failed to delete orphaned attachment file")
			}
		}
		log.Info().Int("deleted", len(orphanKeys)).Dur("ttl", cfg.AttachmentOrphanTTL).
			Msg("Purged orphaned attachment files")
	}
}

// runWithBackoff runs fn in a loop, restarting with exponential backoff when it returns a non-nil, non-cancelled error.
// If fn returns nil or context.Canceled the goroutine exits. The delay starts at 1 second and doubles on each
// consecutive failure up to a 2-minute cap.
func runWithBackoff(ctx context.Context, name string, fn func(context.Context) error) {
	const (
		initialDelay = time.Second
		maxDelay     = 2 * time.Minute
	)
	delay := initialDelay
	for {
		if err := fn(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Err(err).Str("service", name).Dur("retry_in", delay).
				Msg("Background service stopped, restarting after delay")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, maxDelay)
			continue
		}
		return
	}
}

// fiberStatusToAPICode maps an HTTP status code from Fiber's built-in errors (404, 405, etc.) to the closest protocol
// error code.
func fiberStatusToAPICode(status int) wire.Code {
	switch status {
	case fiber.StatusNotFound:
		return wire.CodeNotFound
	case fiber.StatusMethodNotAllowed:
		return wire.CodeValidation
	case fiber.StatusTooManyRequests:
		return wire.CodeRateLimited
	case fiber.StatusRequestEntityTooLarge:
		return wire.CodeValidation
	case fiber.StatusServiceUnavailable:
		return wire.CodeDependencyUnavailable
	default:
		if status >= 400 && status < 500 {
			return wire.CodeValidation
		}
		return wire.CodeInternal
	}
}
